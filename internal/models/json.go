package models

import "github.com/bytedance/sonic"

func jsonMarshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}
