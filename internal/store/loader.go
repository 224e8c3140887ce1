package store

/*
Файл loader.go отвечает за холодную загрузку демо-датасета из каталога
с четырьмя JSON-файлами (merchants, transactions, chargebacks, policies_kb).

Контракт запуска: отсутствие каталога или любого файла, битый JSON или
непарсибельный timestamp транзакции — фатальная ошибка конфигурации.
Процесс в таком состоянии стартовать не должен; на рантайме датасет
уже неизменяем и ошибок загрузки не бывает.
*/

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xela07ax/payops-agent-gateway/internal/domain"
)

const (
	fileMerchants    = "merchants.json"
	fileTransactions = "transactions.json"
	fileChargebacks  = "chargebacks.json"
	filePolicies     = "policies_kb.json"
)

// Dataset — сырой результат загрузки: записи + каталог политик.
// Дальше merchants/transactions индексируются в RecordStore,
// а каталог уходит в policy.Catalog.
type Dataset struct {
	Merchants    []domain.MerchantProfile
	Transactions []domain.Transaction
	Chargebacks  []domain.Chargeback
	Policies     domain.PolicyCatalog
}

// LoadDataset читает каталог данных целиком. Любая ошибка тут — повод
// не поднимать процесс (решает main).
func LoadDataset(dir string) (*Dataset, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: data directory is not configured")
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("store: data directory %q is not accessible", dir)
	}

	ds := &Dataset{}

	if err := readJSON(filepath.Join(dir, fileMerchants), &ds.Merchants); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, fileTransactions), &ds.Transactions); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, fileChargebacks), &ds.Chargebacks); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, filePolicies), &ds.Policies); err != nil {
		return nil, err
	}

	// Парсим таймстемпы один раз, здесь же ловим битые записи
	for i := range ds.Transactions {
		t := &ds.Transactions[i]
		at, err := ParseTime(t.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("store: transaction %s has malformed timestamp %q: %w",
				t.TransactionID, t.Timestamp, err)
		}
		t.At = at
	}

	return ds, nil
}

func readJSON(path string, dst interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("store: cannot read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("store: cannot parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ParseTime разбирает ISO-8601 с оффсетом (формат датасета и входных окон)
func ParseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}
