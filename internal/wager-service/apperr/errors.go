package apperr

import (
	"errors"
	"fmt"
)

// Kind classifica a falha para o mapeamento de status na borda HTTP
type Kind string

const (
	Validation Kind = "validation" // entrada malformada/ausente, nunca altera estado
	NotFound   Kind = "not_found"
	Conflict   Kind = "conflict" // regra de negócio / máquina de estados
	Internal   Kind = "internal" // falha do store
)

// Error é o erro tipado do core; Msg descreve exatamente qual pré-condição falhou
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is permite errors.Is(err, ErrInsufficientFunds) comparando kind+mensagem
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Msg == t.Msg
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: Validation, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: Conflict, Msg: fmt.Sprintf(format, args...)}
}

// Wrap embrulha falha do store como Internal preservando a causa
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: Internal, Msg: op, Err: err}
}

// KindOf devolve o kind do erro; erros não tipados são Internal
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// Erros de negócio reutilizados em mais de um fluxo
var (
	ErrAgentNotFound      = &Error{Kind: NotFound, Msg: "agent not found"}
	ErrBetNotFound        = &Error{Kind: NotFound, Msg: "bet not found"}
	ErrInsufficientToPost = &Error{Kind: Conflict, Msg: "insufficient funds to post bet"}
	ErrInsufficientToTake = &Error{Kind: Conflict, Msg: "insufficient funds to take bet"}
	ErrCurrencyMismatch   = &Error{Kind: Conflict, Msg: "currency does not match agent account"}
	ErrBetNotOpen         = &Error{Kind: Conflict, Msg: "bet cannot be taken"}
	ErrBetNotActive       = &Error{Kind: Conflict, Msg: "bet cannot be settled"}
	ErrResolveNotActive   = &Error{Kind: Conflict, Msg: "bet must be active before resolution"}
	ErrInvalidWinner      = &Error{Kind: Conflict, Msg: "winner must be one of the bet participants"}
	ErrBetNotTaken        = &Error{Kind: Conflict, Msg: "bet must be taken before resolution"}
	ErrBetNotEnded        = &Error{Kind: Conflict, Msg: "bet cannot be resolved before end time"}
	ErrInvalidEndTime     = &Error{Kind: Validation, Msg: "bet has invalid end date"}
	ErrSelfTake           = &Error{Kind: Conflict, Msg: "creator cannot take own bet"}
)
