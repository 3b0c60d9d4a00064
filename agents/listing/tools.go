package listing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/shopflow/graph/model"
	"github.com/dshills/shopflow/graph/steps"
	"github.com/dshills/shopflow/graph/tool"
	"github.com/dshills/shopflow/internal/pmall"
)

// Tool names.
const (
	ToolGetCategories = "get_categories"
	ToolGetBrands     = "get_brands"
	ToolCreateProduct = "create_product"
)

var (
	spuRequired = []string{"brand_id", "category_id", "name"}
	skuRequired = []string{"sku_code", "name", "price", "stock"}
)

// Backend is the part of the shop backend the listing tools use.
// *pmall.Client implements it.
type Backend interface {
	Categories(ctx context.Context, parentID *int64) ([]map[string]interface{}, error)
	Brands(ctx context.Context, page, pageSize int) (map[string]interface{}, error)
	CreateProduct(ctx context.Context, p pmall.NewProduct) (map[string]interface{}, error)
}

// NewRegistry returns the listing tools bound to backend.
func NewRegistry(backend Backend) *tool.Registry {
	t := tools{backend: backend}
	return tool.NewRegistry(
		tool.Entry{
			Tool: tool.Func(ToolGetCategories, t.categories),
			Spec: model.ToolSpec{
				Description: "List product categories. Omit parent_id for the top level.",
				Schema:      tool.Schema(map[string]interface{}{"parent_id": tool.Prop("integer", "Parent category id")}),
			},
		},
		tool.Entry{
			Tool: tool.Func(ToolGetBrands, t.brands),
			Spec: model.ToolSpec{
				Description: "List brands.",
				Schema: tool.Schema(map[string]interface{}{
					"page":      tool.Prop("integer", "Page number, default 1"),
					"page_size": tool.Prop("integer", "Page size, default 50"),
				}),
			},
		},
		tool.Entry{
			Tool: tool.Func(ToolCreateProduct, t.create),
			Spec: model.ToolSpec{
				Description: "Create a product (SPU) with its SKUs.",
				Schema: tool.Schema(map[string]interface{}{
					"spu":    tool.Prop("object", "SPU fields: name, sub_title, brand_id, category_id, main_image"),
					"skus":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "object"}, "description": "SKUs: sku_code, name, price, stock"},
					"detail": tool.Prop("object", "Optional detail: description, packing_list, after_sale"),
				}, "spu", "skus"),
			},
		},
	)
}

type tools struct {
	backend Backend
}

func (t tools) categories(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	var args struct {
		ParentID *int64 `json:"parent_id"`
	}
	if err := tool.DecodeArgs(input, &args); err != nil {
		return nil, err
	}
	list, err := t.backend.Categories(ctx, args.ParentID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []map[string]interface{}{}
	}
	return map[string]interface{}{"categories": list}, nil
}

func (t tools) brands(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	var args struct {
		Page     int `json:"page"`
		PageSize int `json:"page_size"`
	}
	if err := tool.DecodeArgs(input, &args); err != nil {
		return nil, err
	}
	return t.backend.Brands(ctx, args.Page, args.PageSize)
}

func (t tools) create(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	var d Draft
	if err := tool.DecodeArgs(input, &d); err != nil {
		return nil, err
	}
	if err := ValidateDraft(&d); err != nil {
		return nil, err
	}

	out, err := t.backend.CreateProduct(ctx, d.product())
	if err != nil {
		return nil, err
	}
	out["text"] = "Product created. SPU ID: " + formatID(out["spu_id"])
	return out, nil
}

func formatID(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// ValidateDraft checks that d can be sent to the backend. A SKU stock may
// be zero but must be present.
func ValidateDraft(d *Draft) error {
	if d == nil || d.Spu == nil {
		return errors.New("product data is missing spu")
	}
	if len(d.Skus) == 0 {
		return errors.New("skus cannot be empty, at least one SKU is required")
	}
	if missing := steps.MissingFields(d.Spu, spuRequired); len(missing) > 0 {
		return fmt.Errorf("SPU is missing required fields: %s", strings.Join(missing, ", "))
	}
	for i, sku := range d.Skus {
		var missing []string
		for _, f := range skuRequired {
			v, ok := sku[f]
			if !ok || (v == nil && f != "stock") || v == "" {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("SKU[%d] is missing required fields: %s", i, strings.Join(missing, ", "))
		}
	}
	return nil
}
