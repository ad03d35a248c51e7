package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"algo_engine/internal/gateway"
	"algo_engine/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
	// Confirm blocks until the operator answers, the timeout passes or ctx
	// is cancelled. Timeout and cancellation count as a decline.
	Confirm(ctx context.Context, prompt string, timeout time.Duration) bool
}

// Telegram pushes alerts to one chat and handles trade confirmations via
// inline keyboard callbacks, plus the /positions and /account commands.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	gw     gateway.Gateway

	mu       sync.Mutex
	pendings map[string]*pending
}

type pending struct {
	ch     chan bool
	msgID  int
	prompt string
}

func NewTelegram(token string, chatID int64, gw gateway.Gateway) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:      b,
		chatID:   chatID,
		gw:       gw,
		pendings: make(map[string]*pending),
	}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// HandleCallback resolves one CONF::token / REJ::token answer.
func (t *Telegram) HandleCallback(cb *tgbot.CallbackQuery) {
	if t == nil || t.bot == nil || cb == nil {
		return
	}

	// acknowledge so the client stops its spinner
	_, _ = t.bot.Request(tgbot.NewCallback(cb.ID, ""))

	verb, token, ok := strings.Cut(cb.Data, "::")
	if !ok || verb == "" || token == "" {
		return
	}

	t.mu.Lock()
	p, found := t.pendings[token]
	t.mu.Unlock()
	if !found {
		return
	}

	accepted := verb == "CONF"
	p.ch <- accepted
	close(p.ch)

	status := "rejected"
	if accepted {
		status = "confirmed"
	}

	_ = t.editReplyMarkupRemove(t.chatID, p.msgID)
	_ = t.editText(t.chatID, p.msgID, fmt.Sprintf("%s\n\n%s", p.prompt, status))

	t.mu.Lock()
	delete(t.pendings, token)
	t.mu.Unlock()
}

func (t *Telegram) editReplyMarkupRemove(chatID int64, msgID int) error {
	rm := tgbot.InlineKeyboardMarkup{InlineKeyboard: [][]tgbot.InlineKeyboardButton{}}
	edit := tgbot.NewEditMessageReplyMarkup(chatID, msgID, rm)
	_, err := t.bot.Request(edit)
	return err
}

func (t *Telegram) editText(chatID int64, msgID int, text string) error {
	edit := tgbot.NewEditMessageText(chatID, msgID, text)
	_, err := t.bot.Request(edit)
	return err
}

// Confirm sends the prompt with confirm/skip buttons and waits for the
// callback.
func (t *Telegram) Confirm(ctx context.Context, prompt string, timeout time.Duration) bool {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return true
	}

	token := fmt.Sprintf("%d", time.Now().UnixNano())
	p := &pending{
		ch:     make(chan bool, 1),
		prompt: prompt,
	}

	t.mu.Lock()
	t.pendings[token] = p
	t.mu.Unlock()

	btnYes := tgbot.NewInlineKeyboardButtonData("Execute", "CONF::"+token)
	btnNo := tgbot.NewInlineKeyboardButtonData("Skip", "REJ::"+token)
	kb := tgbot.NewInlineKeyboardMarkup(tgbot.NewInlineKeyboardRow(btnYes, btnNo))

	msg := tgbot.NewMessage(t.chatID, prompt)
	msg.ReplyMarkup = kb

	sent, _ := t.bot.Send(msg)
	p.msgID = sent.MessageID

	tmr := time.NewTimer(timeout)
	defer tmr.Stop()

	select {
	case ok := <-p.ch:
		return ok
	case <-tmr.C:
		t.expire(token, p, prompt+"\n\ntimed out")
		return false
	case <-ctx.Done():
		t.expire(token, p, prompt+"\n\ncancelled")
		return false
	}
}

func (t *Telegram) expire(token string, p *pending, text string) {
	_ = t.editReplyMarkupRemove(t.chatID, p.msgID)
	_ = t.editText(t.chatID, p.msgID, text)
	t.mu.Lock()
	delete(t.pendings, token)
	t.mu.Unlock()
}

func (t *Telegram) handlePositions(ctx context.Context) {
	positions, err := t.gw.Positions(ctx)
	if err != nil {
		t.Sendf("positions unavailable: %v", err)
		return
	}
	if len(positions) == 0 {
		t.Send("no open positions")
		return
	}

	var b strings.Builder
	b.WriteString("open positions:\n")
	for _, p := range positions {
		fmt.Fprintf(&b, "- #%d %s %s vol=%.4f @ %.4f pnl=%.2f\n",
			p.Ticket, p.Symbol, strings.ToUpper(string(p.Side)), p.Volume, p.OpenPrice, p.Profit)
	}
	t.Send(b.String())
}

func (t *Telegram) handleAccount(ctx context.Context) {
	account, err := t.gw.AccountInfo(ctx)
	if err != nil {
		t.Sendf("account unavailable: %v", err)
		return
	}
	t.Sendf("balance=%.2f equity=%.2f margin=%.2f free=%.2f",
		account.Balance, account.Equity, account.Margin, account.FreeMargin)
}

// Start long-polls for messages and callback queries until ctx is done.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.CallbackQuery != nil {
					t.HandleCallback(upd.CallbackQuery)
				}
				if upd.Message != nil && upd.Message.Chat != nil &&
					upd.Message.Chat.ID == t.chatID && upd.Message.IsCommand() {

					switch upd.Message.Command() {
					case "positions":
						go t.handlePositions(ctx)
					case "account":
						go t.handleAccount(ctx)
					}
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {
	if t != nil && t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
}

// Stdout logs everything and auto-confirms; the fallback for runs without a
// Telegram token.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { logger.Info("%s", msg) }
func (s *Stdout) Sendf(format string, args ...any) { logger.Info(format, args...) }
func (s *Stdout) Confirm(ctx context.Context, prompt string, timeout time.Duration) bool {
	logger.Info("confirm (auto-yes): %s", prompt)
	return true
}
