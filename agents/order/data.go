// Package order is the conversational order-placing workflow: search the
// catalogue, pick a product, review the cart, give a shipping address and
// place the order.
package order

import (
	"encoding/json"

	"github.com/dshills/shopflow/graph/steps"
	"github.com/dshills/shopflow/internal/pmall"
)

// Data is the working data of an order session.
type Data struct {
	// SearchResults is the last product listing shown, in display order.
	SearchResults []pmall.Product `json:"search_results,omitempty"`

	SelectedItem *pmall.Product `json:"selected_item,omitempty"`
	Cart         *pmall.Cart    `json:"cart,omitempty"`

	// ShippingAddress collects name, street_address, city, zip_code and
	// email over several messages.
	ShippingAddress map[string]interface{} `json:"shipping_address,omitempty"`

	OrderID string `json:"order_id,omitempty"`
}

// Merge overlays the fields set in delta. Address fields merge one by
// one and a nil value never erases a known one.
func Merge(prev, delta Data) Data {
	out := prev
	if delta.SearchResults != nil {
		out.SearchResults = delta.SearchResults
	}
	if delta.SelectedItem != nil {
		out.SelectedItem = delta.SelectedItem
	}
	if delta.Cart != nil {
		out.Cart = delta.Cart
	}
	if delta.ShippingAddress != nil {
		out.ShippingAddress = steps.MergeFields(prev.ShippingAddress, delta.ShippingAddress)
	}
	if delta.OrderID != "" {
		out.OrderID = delta.OrderID
	}
	return out
}

// addressFields are the required address fields, in prompt order.
var addressFields = []string{"name", "street_address", "city", "zip_code", "email"}

var fieldLabels = map[string]string{
	"name":           "Recipient name (收货人姓名)",
	"street_address": "Street address (详细地址)",
	"city":           "City (城市)",
	"zip_code":       "Zip code (邮编)",
	"email":          "Email (邮箱)",
}

// productsFrom reads a product list out of a tool result.
func productsFrom(v interface{}) []pmall.Product {
	switch t := v.(type) {
	case nil:
		return nil
	case []pmall.Product:
		return t
	}
	var out []pmall.Product
	if !reencode(v, &out) {
		return nil
	}
	if out == nil {
		out = []pmall.Product{}
	}
	return out
}

// cartFrom reads a cart out of a tool result.
func cartFrom(v interface{}) *pmall.Cart {
	switch t := v.(type) {
	case nil:
		return nil
	case pmall.Cart:
		return &t
	case *pmall.Cart:
		return t
	}
	var out pmall.Cart
	if !reencode(v, &out) {
		return nil
	}
	return &out
}

func reencode(in, out interface{}) bool {
	data, err := json.Marshal(in)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}
