package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/shopflow/graph/model"
	"github.com/dshills/shopflow/graph/tool"
	"github.com/dshills/shopflow/internal/pmall"
)

// Tool names.
const (
	ToolSearchProducts   = "search_products"
	ToolGetProductDetail = "get_product_detail"
	ToolViewCart         = "view_cart"
	ToolAddToCart        = "add_to_cart"
	ToolRemoveFromCart   = "remove_from_cart"
	ToolPlaceOrder       = "place_order"
)

// Mall is the part of the shop backend the order tools use.
// *pmall.Client implements it.
type Mall interface {
	SearchProducts(ctx context.Context, p pmall.SearchParams) (pmall.SearchResult, error)
	GetProduct(ctx context.Context, spuID int64) (map[string]interface{}, error)
	GetCart(ctx context.Context) (pmall.Cart, error)
	AddToCart(ctx context.Context, skuID int64, quantity int) (map[string]interface{}, error)
	RemoveFromCart(ctx context.Context, skuIDs []int64) error
	PlaceOrder(ctx context.Context, email string, addr pmall.ShippingAddress) (pmall.OrderResult, error)
}

// NewRegistry returns the order tools bound to mall.
func NewRegistry(mall Mall) *tool.Registry {
	t := tools{mall: mall}
	return tool.NewRegistry(
		tool.Entry{
			Tool: tool.Func(ToolSearchProducts, t.search),
			Spec: model.ToolSpec{
				Description: "Search the shop catalogue. Always use this when the user mentions any product, brand or budget; never recommend products from memory.",
				Schema: tool.Schema(map[string]interface{}{
					"keyword":     tool.Prop("string", "Search keyword, e.g. phone, 手机, Redmi"),
					"category_id": tool.Prop("integer", "Category id"),
					"brand_id":    tool.Prop("integer", "Brand id"),
					"min_price":   tool.Prop("number", "Lowest price; for \"around 2000\" use 1900"),
					"max_price":   tool.Prop("number", "Highest price; for \"around 2000\" use 2100"),
					"sort_by":     tool.Prop("string", "default, price_asc, price_desc or sale"),
					"page_size":   tool.Prop("integer", "Number of results, default 5"),
				}),
			},
		},
		tool.Entry{
			Tool: tool.Func(ToolGetProductDetail, t.detail),
			Spec: model.ToolSpec{
				Description: "Get a product with all of its SKUs.",
				Schema:      tool.Schema(map[string]interface{}{"spu_id": tool.Prop("integer", "Product SPU id")}, "spu_id"),
			},
		},
		tool.Entry{
			Tool: tool.Func(ToolViewCart, t.viewCart),
			Spec: model.ToolSpec{
				Description: "Show the contents of the shopping cart.",
				Schema:      tool.Schema(map[string]interface{}{}),
			},
		},
		tool.Entry{
			Tool: tool.Func(ToolAddToCart, t.addToCart),
			Spec: model.ToolSpec{
				Description: "Add a SKU to the shopping cart.",
				Schema: tool.Schema(map[string]interface{}{
					"sku_id":   tool.Prop("integer", "SKU id"),
					"quantity": tool.Prop("integer", "Quantity, default 1"),
				}, "sku_id"),
			},
		},
		tool.Entry{
			Tool: tool.Func(ToolRemoveFromCart, t.removeFromCart),
			Spec: model.ToolSpec{
				Description: "Remove SKUs from the shopping cart.",
				Schema: tool.Schema(map[string]interface{}{
					"sku_ids": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "integer"},
						"description": "SKU ids to remove",
					},
				}, "sku_ids"),
			},
		},
		tool.Entry{
			Tool: tool.Func(ToolPlaceOrder, t.placeOrder),
			Spec: model.ToolSpec{
				Description: "Create an order from the cart.",
				Schema: tool.Schema(map[string]interface{}{
					"email":          tool.Prop("string", "Contact email"),
					"name":           tool.Prop("string", "Recipient name"),
					"street_address": tool.Prop("string", "Street address"),
					"city":           tool.Prop("string", "City"),
					"zip_code":       tool.Prop("integer", "Zip code"),
				}, addressFields...),
			},
		},
	)
}

type tools struct {
	mall Mall
}

type searchArgs struct {
	Keyword    string   `json:"keyword"`
	CategoryID int64    `json:"category_id"`
	BrandID    int64    `json:"brand_id"`
	MinPrice   *float64 `json:"min_price"`
	MaxPrice   *float64 `json:"max_price"`
	SortBy     string   `json:"sort_by"`
	PageSize   int      `json:"page_size"`
}

func (t tools) search(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	var args searchArgs
	if err := tool.DecodeArgs(input, &args); err != nil {
		return nil, err
	}
	if args.PageSize <= 0 {
		args.PageSize = 5
	}

	res, err := t.mall.SearchProducts(ctx, pmall.SearchParams{
		Keyword:    args.Keyword,
		CategoryID: args.CategoryID,
		BrandID:    args.BrandID,
		MinPrice:   args.MinPrice,
		MaxPrice:   args.MaxPrice,
		SortBy:     args.SortBy,
		Page:       1,
		PageSize:   args.PageSize,
	})
	if err != nil {
		return nil, err
	}
	if len(res.List) == 0 {
		return map[string]interface{}{"text": "No matching products found.", "products": []pmall.Product{}}, nil
	}
	return map[string]interface{}{"products": res.List, "total": res.Total}, nil
}

func (t tools) detail(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	var args struct {
		SpuID int64 `json:"spu_id"`
	}
	if err := tool.DecodeArgs(input, &args); err != nil {
		return nil, err
	}
	if args.SpuID <= 0 {
		return nil, errors.New("spu_id is required")
	}
	return t.mall.GetProduct(ctx, args.SpuID)
}

func (t tools) viewCart(ctx context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
	cart, err := t.mall.GetCart(ctx)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return map[string]interface{}{"text": "The cart is empty.", "cart": cart}, nil
	}
	return map[string]interface{}{"cart": cart}, nil
}

func (t tools) addToCart(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	var args struct {
		SkuID    int64 `json:"sku_id"`
		Quantity int   `json:"quantity"`
	}
	if err := tool.DecodeArgs(input, &args); err != nil {
		return nil, err
	}
	if args.SkuID <= 0 {
		return nil, errors.New("sku_id is required")
	}
	if args.Quantity <= 0 {
		args.Quantity = 1
	}

	item, err := t.mall.AddToCart(ctx, args.SkuID, args.Quantity)
	if err != nil {
		return nil, err
	}
	name, _ := item["sku_name"].(string)
	if name == "" {
		name, _ = item["name"].(string)
	}
	if name == "" {
		name = fmt.Sprintf("SKU %d", args.SkuID)
	}
	return map[string]interface{}{
		"text": fmt.Sprintf("Added to cart: %s x %d", name, args.Quantity),
		"item": item,
	}, nil
}

func (t tools) removeFromCart(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	var args struct {
		SkuIDs []int64 `json:"sku_ids"`
	}
	if err := tool.DecodeArgs(input, &args); err != nil {
		return nil, err
	}
	if len(args.SkuIDs) == 0 {
		return nil, errors.New("sku_ids is required")
	}
	if err := t.mall.RemoveFromCart(ctx, args.SkuIDs); err != nil {
		return nil, err
	}
	return map[string]interface{}{"text": fmt.Sprintf("Removed %d item(s) from the cart.", len(args.SkuIDs))}, nil
}

type orderArgs struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	ZipCode       int64  `json:"zip_code"`
}

func (t tools) placeOrder(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	var args orderArgs
	if err := tool.DecodeArgs(input, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Email) == "" || strings.TrimSpace(args.Name) == "" {
		return nil, errors.New("email and name are required")
	}

	res, err := t.mall.PlaceOrder(ctx, args.Email, pmall.ShippingAddress{
		Name:          args.Name,
		StreetAddress: args.StreetAddress,
		City:          args.City,
		ZipCode:       args.ZipCode,
	})
	if err != nil {
		return nil, err
	}
	if res.OrderID == "" {
		return map[string]interface{}{"text": "Order placed!"}, nil
	}
	return map[string]interface{}{
		"text":     "Order placed! Order number: " + res.OrderID,
		"order_id": res.OrderID,
	}, nil
}
