package pmall

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Price is a decimal amount. The API sends it as a string or a number; it
// is kept as text to avoid float rounding.
type Price string

// UnmarshalJSON accepts "99.99" and 99.99.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Price(s)
		return nil
	}
	if string(data) == "null" {
		*p = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = Price(n.String())
	return nil
}

// Float returns the price as a number, or 0 when it does not parse.
func (p Price) Float() float64 {
	f, _ := strconv.ParseFloat(string(p), 64)
	return f
}

// Product is one SKU row of a search result.
type Product struct {
	SkuID        int64  `json:"sku_id"`
	SkuName      string `json:"sku_name"`
	SubTitle     string `json:"sub_title,omitempty"`
	MainImage    string `json:"main_image,omitempty"`
	Price        Price  `json:"price"`
	MarketPrice  Price  `json:"market_price,omitempty"`
	Stock        int64  `json:"stock"`
	SkuSpecData  string `json:"sku_spec_data,omitempty"`
	SpuID        int64  `json:"spu_id"`
	SpuName      string `json:"spu_name,omitempty"`
	CategoryID   int64  `json:"category_id,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
	BrandID      int64  `json:"brand_id,omitempty"`
	BrandName    string `json:"brand_name,omitempty"`
	SaleCount    int64  `json:"sale_count,omitempty"`
}

// SearchParams filters a product search. Zero values are omitted.
type SearchParams struct {
	Keyword    string
	CategoryID int64
	BrandID    int64
	MinPrice   *float64
	MaxPrice   *float64
	SortBy     string
	Page       int
	PageSize   int
}

// SearchResult is one page of search results.
type SearchResult struct {
	List  []Product `json:"list"`
	Total int64     `json:"total"`
}

// CartItem is one line of the cart.
type CartItem struct {
	SkuID     int64  `json:"sku_id"`
	SkuName   string `json:"sku_name"`
	MainImage string `json:"main_image,omitempty"`
	Price     Price  `json:"price"`
	Quantity  int64  `json:"quantity"`
	SpuID     int64  `json:"spu_id,omitempty"`
}

// Cart is the current user's cart.
type Cart struct {
	Items         []CartItem `json:"items"`
	TotalQuantity int64      `json:"total_quantity,omitempty"`
	TotalAmount   Price      `json:"total_amount,omitempty"`
}

// ShippingAddress is where an order goes.
type ShippingAddress struct {
	Name          string `json:"name"`
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	ZipCode       int64  `json:"zip_code"`
}

// OrderResult identifies a placed order.
type OrderResult struct {
	OrderID string
}

// NewProduct is the payload of a product creation.
type NewProduct struct {
	Spu    map[string]interface{}   `json:"spu"`
	Skus   []map[string]interface{} `json:"skus"`
	Detail map[string]interface{}   `json:"detail,omitempty"`
}
