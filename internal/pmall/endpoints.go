package pmall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// SearchProducts runs a product search.
func (c *Client) SearchProducts(ctx context.Context, p SearchParams) (SearchResult, error) {
	q := url.Values{}
	if p.Keyword != "" {
		q.Set("keyword", p.Keyword)
	}
	if p.CategoryID != 0 {
		q.Set("category_id", strconv.FormatInt(p.CategoryID, 10))
	}
	if p.BrandID != 0 {
		q.Set("brand_id", strconv.FormatInt(p.BrandID, 10))
	}
	if p.MinPrice != nil {
		q.Set("min_price", strconv.FormatFloat(*p.MinPrice, 'f', -1, 64))
	}
	if p.MaxPrice != nil {
		q.Set("max_price", strconv.FormatFloat(*p.MaxPrice, 'f', -1, 64))
	}
	sortBy := p.SortBy
	if sortBy == "" {
		sortBy = "default"
	}
	q.Set("sort_by", sortBy)
	q.Set("page", strconv.Itoa(max(p.Page, 1)))
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	q.Set("page_size", strconv.Itoa(pageSize))

	var out SearchResult
	if err := c.call(ctx, http.MethodGet, "/products/search", q, nil, &out); err != nil {
		return SearchResult{}, fmt.Errorf("search products: %w", err)
	}
	return out, nil
}

// GetProduct returns the SPU and all its SKUs.
func (c *Client) GetProduct(ctx context.Context, spuID int64) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.call(ctx, http.MethodGet, "/products/"+strconv.FormatInt(spuID, 10), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get product %d: %w", spuID, err)
	}
	return out, nil
}

// GetCart returns the current cart.
func (c *Client) GetCart(ctx context.Context) (Cart, error) {
	var out Cart
	if err := c.call(ctx, http.MethodGet, "/cart", nil, nil, &out); err != nil {
		return Cart{}, fmt.Errorf("get cart: %w", err)
	}
	return out, nil
}

// AddToCart adds quantity units of a SKU and returns the added line as
// the API describes it.
func (c *Client) AddToCart(ctx context.Context, skuID int64, quantity int) (map[string]interface{}, error) {
	if quantity <= 0 {
		quantity = 1
	}
	body := map[string]interface{}{"sku_id": skuID, "quantity": quantity}
	var out map[string]interface{}
	if err := c.call(ctx, http.MethodPost, "/cart/add", nil, body, &out); err != nil {
		return nil, fmt.Errorf("add sku %d to cart: %w", skuID, err)
	}
	if item, ok := out["item"].(map[string]interface{}); ok {
		return item, nil
	}
	return out, nil
}

// RemoveFromCart removes SKUs from the cart.
func (c *Client) RemoveFromCart(ctx context.Context, skuIDs []int64) error {
	body := map[string]interface{}{"sku_ids": skuIDs}
	if err := c.call(ctx, http.MethodPost, "/cart/remove", nil, body, nil); err != nil {
		return fmt.Errorf("remove from cart: %w", err)
	}
	return nil
}

// PlaceOrder turns the cart into an order.
func (c *Client) PlaceOrder(ctx context.Context, email string, addr ShippingAddress) (OrderResult, error) {
	body := map[string]interface{}{"email": email, "shipping_address": addr}
	var out map[string]interface{}
	if err := c.call(ctx, http.MethodPost, "/orders", nil, body, &out); err != nil {
		return OrderResult{}, fmt.Errorf("place order: %w", err)
	}

	id := idString(out["order_id"])
	if id == "" {
		if order, ok := out["order"].(map[string]interface{}); ok {
			id = idString(order["order_id"])
		}
	}
	return OrderResult{OrderID: id}, nil
}

// Categories lists categories under parentID, or the roots when nil.
func (c *Client) Categories(ctx context.Context, parentID *int64) ([]map[string]interface{}, error) {
	q := url.Values{}
	if parentID != nil {
		q.Set("parent_id", strconv.FormatInt(*parentID, 10))
	}
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, "/categories", q, nil, &raw); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return decodeList(raw, "list", "categories")
}

// Brands returns one page of brands.
func (c *Client) Brands(ctx context.Context, page, pageSize int) (map[string]interface{}, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(max(page, 1)))
	q.Set("page_size", strconv.Itoa(pageSize))

	var out map[string]interface{}
	if err := c.call(ctx, http.MethodGet, "/brands", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	return out, nil
}

// CreateProduct creates an SPU with its SKUs.
func (c *Client) CreateProduct(ctx context.Context, p NewProduct) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.call(ctx, http.MethodPost, "/products", nil, p, &out); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}

// decodeList accepts a bare array or an object holding one under any of
// keys.
func decodeList(raw json.RawMessage, keys ...string) ([]map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var list []map[string]interface{}
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	for _, k := range keys {
		if inner, ok := obj[k]; ok {
			if err := json.Unmarshal(inner, &list); err != nil {
				return nil, fmt.Errorf("decode list: %w", err)
			}
			return list, nil
		}
	}
	return nil, nil
}

func idString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
