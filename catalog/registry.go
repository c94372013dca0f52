package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-payledger/core"
)

// Registry is an immutable merchant/product catalog. It is built once and is
// safe for concurrent reads.
type Registry struct {
	products map[string]map[string]core.ProductDescriptor
	count    int
}

func NewRegistry(products ...core.ProductDescriptor) (*Registry, error) {
	registry := &Registry{products: map[string]map[string]core.ProductDescriptor{}}
	for _, product := range products {
		merchantID := strings.TrimSpace(product.MerchantID)
		productID := strings.TrimSpace(product.ProductID)
		if merchantID == "" || productID == "" {
			return nil, fmt.Errorf("catalog: merchant id and product id are required")
		}
		if product.Grant() == nil {
			return nil, &core.MisconfiguredProductError{
				MerchantID: merchantID,
				ProductID:  productID,
				Reason:     "product variant is missing",
			}
		}
		merchant, ok := registry.products[merchantID]
		if !ok {
			merchant = map[string]core.ProductDescriptor{}
			registry.products[merchantID] = merchant
		}
		if _, exists := merchant[productID]; exists {
			return nil, fmt.Errorf("catalog: product already registered: %s", core.ProductKey(merchantID, productID))
		}
		merchant[productID] = product
		registry.count++
	}
	return registry, nil
}

// Lookup returns the descriptor for merchantID/productID. A miss on either
// component yields the same ConfigNotFoundError.
func (r *Registry) Lookup(merchantID string, productID string) (core.ProductDescriptor, error) {
	notFound := &core.ConfigNotFoundError{MerchantID: merchantID, ProductID: productID}
	if r == nil {
		return core.ProductDescriptor{}, notFound
	}
	product, ok := r.products[strings.TrimSpace(merchantID)][strings.TrimSpace(productID)]
	if !ok {
		return core.ProductDescriptor{}, notFound
	}
	return product, nil
}

func (r *Registry) Merchants() []string {
	if r == nil {
		return nil
	}
	merchants := make([]string, 0, len(r.products))
	for merchantID := range r.products {
		merchants = append(merchants, merchantID)
	}
	sort.Strings(merchants)
	return merchants
}

func (r *Registry) Products(merchantID string) []core.ProductDescriptor {
	if r == nil {
		return nil
	}
	merchant := r.products[strings.TrimSpace(merchantID)]
	products := make([]core.ProductDescriptor, 0, len(merchant))
	for _, product := range merchant {
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].ProductID < products[j].ProductID
	})
	return products
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return r.count
}

var _ core.ProductCatalog = (*Registry)(nil)
