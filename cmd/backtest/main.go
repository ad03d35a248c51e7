package main

import (
	"context"
	"log"
	"os"

	"algo_engine/internal/backtest"
	"algo_engine/internal/config"
	"algo_engine/internal/marketdata"
	"algo_engine/internal/models"
	"algo_engine/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// strategyFile is the on-disk strategy definition, optionally carrying a
// parameter grid for optimization.
type strategyFile struct {
	Strategy models.StrategyConfig `yaml:"strategy"`
	Optimize struct {
		Parameters  []backtest.ParamRange `yaml:"parameters"`
		Objective   string                `yaml:"objective"`
		Parallelism int                   `yaml:"parallelism"`
	} `yaml:"optimize"`
}

func main() {
	pflag.String("strategy", "", "path to the strategy yaml")
	pflag.String("symbol", "", "override the strategy symbol")
	pflag.String("timeframe", "", "override the strategy timeframe")
	pflag.Int("bars", 500, "number of historical bars to fetch")
	pflag.Float64("spread-pips", 0, "spread in pips (0 => config default)")
	pflag.Float64("commission", -1, "commission per standard lot (-1 => config default)")
	pflag.Float64("balance", 0, "initial balance (0 => config default)")
	pflag.Bool("optimize", false, "run the parameter grid instead of a single pass")
	pflag.String("out", "", "write the JSON report here instead of stdout")
	pflag.Parse()

	v := viper.New()
	v.SetEnvPrefix("BACKTEST")
	v.AutomaticEnv()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		log.Fatal(err)
	}

	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(v); err != nil {
		logger.Fatal("%v", err)
	}
}

func run(v *viper.Viper) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}

	sf, err := loadStrategy(v.GetString("strategy"))
	if err != nil {
		return err
	}
	if s := v.GetString("symbol"); s != "" {
		sf.Strategy.Symbol = s
	}
	if tf := v.GetString("timeframe"); tf != "" {
		sf.Strategy.Timeframe = tf
	}

	ctx := context.Background()
	md := marketdata.NewClient(cfg, marketdata.NewBarCache(cfg.MarketData.CacheBars), nil)
	bars, err := md.HistoricalBars(ctx, sf.Strategy.Symbol, sf.Strategy.Timeframe, v.GetInt("bars"))
	if err != nil {
		return err
	}
	logger.Info("fetched %d bars of %s %s", len(bars), sf.Strategy.Symbol, sf.Strategy.Timeframe)

	req := backtest.Request{
		Strategy:       sf.Strategy,
		Bars:           bars,
		SpreadPips:     cfg.DefaultSpreadPips,
		Commission:     cfg.DefaultCommission,
		InitialBalance: cfg.DefaultInitialBalance,
	}
	if sp := v.GetFloat64("spread-pips"); sp > 0 {
		req.SpreadPips = sp
	}
	if cm := v.GetFloat64("commission"); cm >= 0 {
		req.Commission = cm
	}
	if b := v.GetFloat64("balance"); b > 0 {
		req.InitialBalance = b
	}

	engine := backtest.NewEngine()

	var report any
	if v.GetBool("optimize") {
		if len(sf.Optimize.Parameters) == 0 {
			return &models.ConfigurationError{Field: "optimize.parameters", Reason: "no parameter ranges in strategy file"}
		}
		report, err = engine.Optimize(ctx, backtest.OptimizeRequest{
			Base:        req,
			Parameters:  sf.Optimize.Parameters,
			Objective:   sf.Optimize.Objective,
			Parallelism: sf.Optimize.Parallelism,
		})
	} else {
		report, err = engine.Run(ctx, req)
	}
	if err != nil {
		return err
	}

	out, err := sonic.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if path := v.GetString("out"); path != "" {
		return os.WriteFile(path, out, 0o644)
	}
	_, err = os.Stdout.Write(append(out, '\n'))
	return err
}

func loadStrategy(path string) (*strategyFile, error) {
	if path == "" {
		return nil, &models.ConfigurationError{Field: "strategy", Reason: "no strategy file given"}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sf strategyFile
	if err := yaml.Unmarshal(raw, &sf); err != nil {
		return nil, err
	}
	if sf.Strategy.Symbol == "" {
		return nil, &models.ConfigurationError{Field: "strategy.symbol", Reason: "required"}
	}
	if sf.Strategy.Timeframe == "" {
		sf.Strategy.Timeframe = "1m"
	}
	return &sf, nil
}
