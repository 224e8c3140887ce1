package domain

import "errors"

// Таксономия ошибок ядра. Все ошибки бизнес-границ — сентинелы,
// проверяются через errors.Is после оборачивания (%w).
var (
	// ErrNotFound — неизвестный merchant_id / transaction_id.
	// Наружу уходит как проваленный lookup, молчаливых дефолтов нет.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTimeRange — непарсибельные границы окна запроса
	ErrInvalidTimeRange = errors.New("invalid time range")

	// ErrDeliveryFailed — доставка эскалации провалилась после ровно одного ретрая.
	// Результат расследования при этом возвращается (degraded-but-completed).
	ErrDeliveryFailed = errors.New("escalation delivery failed")

	// ErrOutOfOrder — вызов операции вне допустимого состояния расследования
	ErrOutOfOrder = errors.New("operation out of investigation order")

	// ErrUnknownOp — операция вне закрытого набора
	ErrUnknownOp = errors.New("unknown operation")
)
