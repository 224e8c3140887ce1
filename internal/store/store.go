package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xela07ax/payops-agent-gateway/internal/domain"
	"go.uber.org/zap"
)

// RecordStore — индексированный read-only доступ к записям датасета.
// Чистые lookup'ы, никакой бизнес-логики. Строится один раз на старте,
// дальше только конкурентные чтения без локов (мутаций нет).
type RecordStore struct {
	merchants    map[string]*domain.MerchantProfile // ключ — lower(merchant_id)
	transactions map[string]*domain.Transaction     // ключ — lower(transaction_id)

	// Транзакции в исходном порядке датасета (важно для стабильной сортировки)
	txOrder []*domain.Transaction

	// Чарджбеки по мерчанту — контракт на будущее расширение
	chargebacks map[string][]*domain.Chargeback

	logger *zap.Logger
}

// TxFilter — опциональные точные фильтры выборки ListTransactions
type TxFilter struct {
	Status      domain.TxStatus
	DeclineCode string
}

// NewRecordStore строит индексы по загруженному датасету
func NewRecordStore(ds *Dataset, logger *zap.Logger) *RecordStore {
	s := &RecordStore{
		merchants:    make(map[string]*domain.MerchantProfile, len(ds.Merchants)),
		transactions: make(map[string]*domain.Transaction, len(ds.Transactions)),
		txOrder:      make([]*domain.Transaction, 0, len(ds.Transactions)),
		chargebacks:  make(map[string][]*domain.Chargeback),
		logger:       logger.Named("store"),
	}

	for i := range ds.Merchants {
		m := &ds.Merchants[i]
		s.merchants[strings.ToLower(m.MerchantID)] = m
	}
	for i := range ds.Transactions {
		t := &ds.Transactions[i]
		s.transactions[strings.ToLower(t.TransactionID)] = t
		s.txOrder = append(s.txOrder, t)
	}
	for i := range ds.Chargebacks {
		cb := &ds.Chargebacks[i]
		key := strings.ToLower(cb.MerchantID)
		s.chargebacks[key] = append(s.chargebacks[key], cb)
	}

	s.logger.Info("record store indexed",
		zap.Int("merchants", len(s.merchants)),
		zap.Int("transactions", len(s.transactions)),
		zap.Int("chargebacks", len(ds.Chargebacks)),
	)
	return s
}

// GetMerchant — точный поиск без учета регистра
func (s *RecordStore) GetMerchant(id string) (*domain.MerchantProfile, error) {
	if m, ok := s.merchants[strings.ToLower(id)]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("merchant %q: %w", id, domain.ErrNotFound)
}

// GetTransaction — точный поиск без учета регистра
func (s *RecordStore) GetTransaction(id string) (*domain.Transaction, error) {
	if t, ok := s.transactions[strings.ToLower(id)]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("transaction %q: %w", id, domain.ErrNotFound)
}

// ListChargebacks возвращает чарджбеки мерчанта (может быть пусто)
func (s *RecordStore) ListChargebacks(merchantID string) []*domain.Chargeback {
	return s.chargebacks[strings.ToLower(merchantID)]
}

// ListTransactions возвращает транзакции мерчанта с таймстемпом в [start, end]
// включительно, отфильтрованные по точному статусу/коду отказа (если заданы),
// отсортированные по времени по убыванию. Сортировка стабильная: при равных
// таймстемпах сохраняется порядок датасета.
func (s *RecordStore) ListTransactions(merchantID string, start, end time.Time, f TxFilter) []*domain.Transaction {
	wantMerchant := strings.ToLower(merchantID)

	out := make([]*domain.Transaction, 0, 16)
	for _, t := range s.txOrder {
		if strings.ToLower(t.MerchantID) != wantMerchant {
			continue
		}
		if t.At.Before(start) || t.At.After(end) {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.DeclineCode != "" && t.DeclineCode != f.DeclineCode {
			continue
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].At.After(out[j].At)
	})
	return out
}

// ParseRange разбирает строковые границы окна. Битые границы — ErrInvalidTimeRange.
func ParseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := ParseTime(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start %q: %w", startStr, domain.ErrInvalidTimeRange)
	}
	end, err := ParseTime(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end %q: %w", endStr, domain.ErrInvalidTimeRange)
	}
	return start, end, nil
}
