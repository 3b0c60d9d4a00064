package listing

import "github.com/dshills/shopflow/internal/pmall"

// Validation states of a draft.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Draft is a product being prepared for creation.
type Draft struct {
	Spu    map[string]interface{}   `json:"spu"`
	Skus   []map[string]interface{} `json:"skus"`
	Detail map[string]interface{}   `json:"detail,omitempty"`
}

// Complete reports whether the draft has an SPU and at least one SKU.
func (d *Draft) Complete() bool {
	return d != nil && len(d.Spu) > 0 && len(d.Skus) > 0
}

// Args returns the draft as create_product arguments.
func (d *Draft) Args() map[string]interface{} {
	skus := make([]interface{}, len(d.Skus))
	for i, s := range d.Skus {
		skus[i] = s
	}
	args := map[string]interface{}{"spu": d.Spu, "skus": skus}
	if d.Detail != nil {
		args["detail"] = d.Detail
	}
	return args
}

func (d *Draft) product() pmall.NewProduct {
	return pmall.NewProduct{Spu: d.Spu, Skus: d.Skus, Detail: d.Detail}
}

// Data is the working data of the listing workflow.
type Data struct {
	UserInput        string `json:"user_input,omitempty"`
	ProductDraft     *Draft `json:"product_draft,omitempty"`
	ValidationStatus string `json:"validation_status,omitempty"`
	SpuID            string `json:"spu_id,omitempty"`
}

// Merge overlays the non-zero fields of delta on prev. A draft is always
// replaced whole.
func Merge(prev, delta Data) Data {
	out := prev
	if delta.UserInput != "" {
		out.UserInput = delta.UserInput
	}
	if delta.ProductDraft != nil {
		out.ProductDraft = delta.ProductDraft
	}
	if delta.ValidationStatus != "" {
		out.ValidationStatus = delta.ValidationStatus
	}
	if delta.SpuID != "" {
		out.SpuID = delta.SpuID
	}
	return out
}
