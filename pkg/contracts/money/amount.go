// Package money define o tipo de valor monetário trafegado nos contratos JSON.
package money

import "github.com/shopspring/decimal"

// Amount serializa como número JSON sem depender da flag global
// decimal.MarshalJSONWithoutQuotes. Na leitura aceita número ou string.
type Amount struct {
	decimal.Decimal
}

func Of(d decimal.Decimal) Amount { return Amount{d} }

// MarshalJSON escreve o valor exato, sem aspas e sem notação científica
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.Decimal.UnmarshalJSON(data)
}
