package catalog

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goliatone/go-payledger/core"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Entry is one product definition as written in a catalog file.
type Entry struct {
	ID           string `yaml:"id" toml:"id"`
	Name         string `yaml:"name" toml:"name"`
	ProductID    string `yaml:"product_id" toml:"product_id"`
	Price        any    `yaml:"price" toml:"price"`
	PriceID      string `yaml:"price_id" toml:"price_id"`
	LookupKey    string `yaml:"lookup_key" toml:"lookup_key"`
	Type         string `yaml:"type" toml:"type"`
	CreditAmount any    `yaml:"credit_amount" toml:"credit_amount"`
	AddCount     any    `yaml:"add_count" toml:"add_count"`
}

type fileDocument struct {
	Products []Entry `yaml:"products" toml:"products"`
}

// LoadDir builds a Registry from every catalog file in dir. Each file holds
// one merchant; the file stem is the merchant id.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: read dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isCatalogFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var products []core.ProductDescriptor
	for _, name := range names {
		loaded, loadErr := LoadFile(filepath.Join(dir, name))
		if loadErr != nil {
			return nil, loadErr
		}
		products = append(products, loaded...)
	}
	return NewRegistry(products...)
}

func LoadFile(path string) ([]core.ProductDescriptor, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	base := filepath.Base(path)
	merchantID := strings.TrimSuffix(base, filepath.Ext(base))

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		entries, err = decodeYAML(content)
	case ".toml":
		entries, err = decodeTOML(content)
	default:
		return nil, fmt.Errorf("catalog: unsupported file %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", path, err)
	}
	return BuildProducts(merchantID, entries)
}

// BuildProducts converts raw entries of one merchant into descriptors. Tokens
// products without a positive credit amount fail the whole merchant.
func BuildProducts(merchantID string, entries []Entry) ([]core.ProductDescriptor, error) {
	products := make([]core.ProductDescriptor, 0, len(entries))
	for index, entry := range entries {
		product, err := buildProduct(merchantID, entry)
		if err != nil {
			return nil, fmt.Errorf("catalog: %s entry %d: %w", merchantID, index, err)
		}
		products = append(products, product)
	}
	return products, nil
}

func buildProduct(merchantID string, entry Entry) (core.ProductDescriptor, error) {
	productID := strings.TrimSpace(entry.ID)
	if productID == "" {
		productID = strings.TrimSpace(entry.Name)
	}
	price, _, err := parseAmount(entry.Price)
	if err != nil {
		return core.ProductDescriptor{}, fmt.Errorf("price: %w", err)
	}
	info := core.ProductInfo{
		MerchantID:        merchantID,
		ProductID:         productID,
		Name:              entry.Name,
		ProviderProductID: entry.ProductID,
		PriceID:           entry.PriceID,
		LookupKey:         entry.LookupKey,
		Price:             price,
	}

	rawType := entry.Type
	if strings.TrimSpace(rawType) == "" {
		rawType = string(core.ProductTypeTokens)
	}
	productType, err := core.ParseProductType(rawType)
	if err != nil {
		return core.ProductDescriptor{}, err
	}

	switch productType {
	case core.ProductTypeSubscription:
		return core.NewSubscriptionProduct(info)
	default:
		rawAmount := entry.CreditAmount
		if rawAmount == nil {
			rawAmount = entry.AddCount
		}
		amount, set, err := parseAmount(rawAmount)
		if err != nil {
			return core.ProductDescriptor{}, fmt.Errorf("credit_amount: %w", err)
		}
		if !set {
			return core.ProductDescriptor{}, &core.MisconfiguredProductError{
				MerchantID: merchantID,
				ProductID:  productID,
				Reason:     "credit amount is missing",
			}
		}
		return core.NewTokensProduct(info, amount)
	}
}

func decodeYAML(content []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal(content, &node); err != nil {
		return nil, err
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		var entries []Entry
		if err := node.Content[0].Decode(&entries); err != nil {
			return nil, err
		}
		return entries, nil
	}
	var doc fileDocument
	if err := node.Decode(&doc); err != nil {
		return nil, err
	}
	return doc.Products, nil
}

func decodeTOML(content []byte) ([]Entry, error) {
	var doc fileDocument
	if _, err := toml.Decode(string(content), &doc); err != nil {
		return nil, err
	}
	return doc.Products, nil
}

func parseAmount(raw any) (decimal.Decimal, bool, error) {
	switch value := raw.(type) {
	case nil:
		return decimal.Zero, false, nil
	case int:
		return decimal.NewFromInt(int64(value)), true, nil
	case int64:
		return decimal.NewFromInt(value), true, nil
	case uint64:
		if value > math.MaxInt64 {
			return decimal.Zero, false, fmt.Errorf("value %d overflows", value)
		}
		return decimal.NewFromInt(int64(value)), true, nil
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return decimal.Zero, false, fmt.Errorf("value %v is not finite", value)
		}
		return decimal.NewFromFloat(value), true, nil
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return decimal.Zero, false, nil
		}
		parsed, err := decimal.NewFromString(trimmed)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("invalid number %s", strconv.Quote(value))
		}
		return parsed, true, nil
	default:
		return decimal.Zero, false, fmt.Errorf("unsupported value %v of type %T", raw, raw)
	}
}

func isCatalogFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yml", ".yaml", ".toml":
		return true
	}
	return false
}
