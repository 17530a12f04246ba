package exchange

import (
	"fmt"
	"strings"
)

// SupportedExchanges - список поддерживаемых бирж
var SupportedExchanges = []string{
	"deribit",
	"deribit-testnet",
}

// NewExchange создает новый экземпляр биржи по имени
func NewExchange(name string) (Exchange, error) {
	name = strings.ToLower(name)

	switch name {
	case "deribit":
		return NewDeribit(), nil
	case "deribit-testnet":
		return NewDeribitTestnet(), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", name)
	}
}

// IsSupported проверяет, поддерживается ли биржа
func IsSupported(name string) bool {
	name = strings.ToLower(name)
	for _, supported := range SupportedExchanges {
		if name == supported {
			return true
		}
	}
	return false
}
