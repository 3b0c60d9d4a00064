package order

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/dshills/shopflow/graph"
	"github.com/dshills/shopflow/graph/model"
	"github.com/dshills/shopflow/graph/steps"
	"github.com/dshills/shopflow/graph/store"
	"github.com/dshills/shopflow/internal/pmall"
)

type fakeMall struct {
	mu       sync.Mutex
	products []pmall.Product
	cart     pmall.Cart
	added    []int64
	orders   []pmall.ShippingAddress
	orderErr error
}

func newFakeMall() *fakeMall {
	return &fakeMall{products: []pmall.Product{
		{SkuID: 11, SkuName: "Redmi K70 12+256", Price: "1999.00", Stock: 8, SpuID: 1},
		{SkuID: 12, SkuName: "Redmi K70 16+512", Price: "2399.00", Stock: 3, SpuID: 1},
		{SkuID: 21, SkuName: "Xiaomi 14", Price: "3999.00", Stock: 5, SpuID: 2},
	}}
}

func (f *fakeMall) SearchProducts(_ context.Context, p pmall.SearchParams) (pmall.SearchResult, error) {
	if p.Keyword == "nothing" {
		return pmall.SearchResult{}, nil
	}
	return pmall.SearchResult{List: f.products, Total: int64(len(f.products))}, nil
}

func (f *fakeMall) GetProduct(_ context.Context, spuID int64) (map[string]interface{}, error) {
	return map[string]interface{}{"spu": map[string]interface{}{"id": spuID}}, nil
}

func (f *fakeMall) GetCart(context.Context) (pmall.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cart, nil
}

func (f *fakeMall) AddToCart(_ context.Context, skuID int64, quantity int) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, skuID)
	for _, p := range f.products {
		if p.SkuID == skuID {
			f.cart.Items = append(f.cart.Items, pmall.CartItem{SkuID: skuID, SkuName: p.SkuName, Price: p.Price, Quantity: int64(quantity)})
			f.cart.TotalQuantity += int64(quantity)
			return map[string]interface{}{"sku_name": p.SkuName}, nil
		}
	}
	return nil, errors.New("sku not found")
}

func (f *fakeMall) RemoveFromCart(context.Context, []int64) error { return nil }

func (f *fakeMall) PlaceOrder(_ context.Context, _ string, addr pmall.ShippingAddress) (pmall.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return pmall.OrderResult{}, f.orderErr
	}
	f.orders = append(f.orders, addr)
	return pmall.OrderResult{OrderID: "ORD-1"}, nil
}

// scriptedModel answers the tool pass of search and cart steps with the
// matching tool call, summary passes with a fixed text, and address
// extraction from a queue.
type scriptedModel struct {
	mu        sync.Mutex
	addresses []string
	silent    bool // answer tool passes with neither text nor calls
}

func (m *scriptedModel) chat(messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	first := messages[0]
	switch {
	case first.Role == model.RoleUser && strings.HasPrefix(first.Content, "Extract the shipping information"):
		m.mu.Lock()
		defer m.mu.Unlock()
		if len(m.addresses) == 0 {
			return model.ChatOut{}, errors.New("no scripted address")
		}
		next := m.addresses[0]
		m.addresses = m.addresses[1:]
		return model.ChatOut{Text: next}, nil
	case len(tools) == 0:
		return model.ChatOut{Text: "summary"}, nil
	case m.silent:
		return model.ChatOut{}, nil
	case first.Content == searchInstruction:
		return model.ChatOut{ToolCalls: []model.ToolCall{{Name: ToolSearchProducts, Input: map[string]interface{}{"keyword": "phones"}}}}, nil
	case first.Content == viewCartInstruction:
		return model.ChatOut{ToolCalls: []model.ToolCall{{Name: ToolViewCart}}}, nil
	default:
		return model.ChatOut{Text: "Please reply with a product number."}, nil
	}
}

type fixture struct {
	eng   *graph.Engine[Data]
	mall  *fakeMall
	model *scriptedModel
	st    *store.MemStore[graph.State[Data]]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{mall: newFakeMall(), model: &scriptedModel{}, st: store.NewMemStore[graph.State[Data]]()}
	llm := &model.MockChatModel{Script: f.model.chat}

	eng, err := New(llm, NewRegistry(f.mall), f.st)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.eng = eng
	return f
}

func (f *fixture) send(t *testing.T, text string) graph.Turn[Data] {
	t.Helper()
	turn, err := f.eng.Send(context.Background(), "t1", text)
	if err != nil {
		t.Fatalf("Send(%q): %v", text, err)
	}
	return turn
}

func TestScenario_FindPhonesThenPickFirst(t *testing.T) {
	f := newFixture(t)

	turn := f.send(t, "find phones")
	if turn.Pending != StepConfirmSelection {
		t.Fatalf("pending = %q, want %s", turn.Pending, StepConfirmSelection)
	}
	if got := len(turn.State.Data.SearchResults); got != 3 {
		t.Fatalf("search results = %d, want 3", got)
	}
	if turn.Text() != "summary" {
		t.Errorf("reply = %q", turn.Text())
	}

	turn = f.send(t, "1")
	if turn.Pending != StepConfirmCart {
		t.Fatalf("pending = %q, want %s", turn.Pending, StepConfirmCart)
	}
	if !reflect.DeepEqual(f.mall.added, []int64{11}) {
		t.Errorf("added = %v, want [11]", f.mall.added)
	}
	if sel := turn.State.Data.SelectedItem; sel == nil || sel.SkuID != 11 {
		t.Errorf("selected = %+v", sel)
	}
	if c := turn.State.Data.Cart; c == nil || len(c.Items) != 1 {
		t.Errorf("cart = %+v", c)
	}
	if len(turn.Replies) != 2 || !strings.Contains(turn.Replies[0].Content, "Added to cart: Redmi K70 12+256 x 1") {
		t.Errorf("replies = %+v", turn.Replies)
	}
}

func TestHandleSelection_NumericBounds(t *testing.T) {
	f := newFixture(t)
	f.send(t, "find phones")

	turn := f.send(t, "4")
	if turn.Pending != StepConfirmSelection || turn.NextStep != StepConfirmSelection {
		t.Fatalf("pending = %q, next = %q", turn.Pending, turn.NextStep)
	}
	if !strings.Contains(turn.Text(), "between 1 and 3") {
		t.Errorf("reply = %q", turn.Text())
	}
	if len(f.mall.added) != 0 {
		t.Errorf("added = %v", f.mall.added)
	}

	turn = f.send(t, "2")
	if turn.Pending != StepConfirmCart {
		t.Fatalf("pending = %q", turn.Pending)
	}
	if sel := turn.State.Data.SelectedItem; sel == nil || sel.SkuID != f.mall.products[1].SkuID {
		t.Errorf("selected = %+v, want index 1", sel)
	}
}

func TestHandleSelection_Intents(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"查看购物车", StepViewCart},
		{"show my cart", StepViewCart},
		{"去结算", StepViewCart},
		{"Checkout please", StepViewCart},
		{"继续购物", StepSearch},
		{"再看看", StepSearch},
		{" 3 ", intentSelect},
		{"the red one", intentAsk},
	}
	for _, tt := range tests {
		if got := steps.Classify(strings.TrimSpace(tt.input), selectionIntents); got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestHandleSelection_FreeTextDispatches(t *testing.T) {
	f := newFixture(t)
	f.send(t, "find phones")

	turn := f.send(t, "which one has more storage?")
	if turn.Pending != StepConfirmSelection {
		t.Fatalf("pending = %q", turn.Pending)
	}
	if turn.Text() != "Please reply with a product number." {
		t.Errorf("reply = %q", turn.Text())
	}
}

func TestFullOrder(t *testing.T) {
	f := newFixture(t)
	f.model.addresses = []string{
		`{"name": "Zhang", "street_address": null, "city": null, "zip_code": null, "email": null}`,
		"```json\n{\"city\": \"Beijing\", \"name\": null, \"street_address\": \"1 Zhongguancun St\", \"zip_code\": 100080, \"email\": \"z@example.com\"}\n```",
	}

	f.send(t, "find phones")
	f.send(t, "1")

	turn := f.send(t, "hmm")
	if turn.Pending != StepConfirmCart || turn.Text() != cartReprompt {
		t.Fatalf("pending = %q, reply = %q", turn.Pending, turn.Text())
	}

	turn = f.send(t, "去结算")
	if turn.Pending != StepCollectAddress || turn.Text() != addressRequest {
		t.Fatalf("pending = %q, reply = %q", turn.Pending, turn.Text())
	}

	turn = f.send(t, "Zhang")
	if turn.Pending != StepCollectAddress {
		t.Fatalf("pending = %q", turn.Pending)
	}
	for _, label := range []string{"Street address", "City", "Zip code", "Email"} {
		if !strings.Contains(turn.Text(), label) {
			t.Errorf("missing-field reply lacks %q: %q", label, turn.Text())
		}
	}
	if strings.Contains(turn.Text(), "Recipient name") {
		t.Errorf("name asked again: %q", turn.Text())
	}

	turn = f.send(t, "Beijing, 1 Zhongguancun St 100080 z@example.com")
	if turn.Pending != StepConfirmOrder {
		t.Fatalf("pending = %q, reply = %q", turn.Pending, turn.Text())
	}
	if got := turn.State.Data.ShippingAddress["name"]; got != "Zhang" {
		t.Errorf("name = %v, want Zhang kept", got)
	}

	turn = f.send(t, "确认")
	if !turn.Ended {
		t.Fatalf("turn = %+v", turn)
	}
	if turn.State.Data.OrderID != "ORD-1" || turn.State.ErrorMessage != "" {
		t.Errorf("data = %+v, error = %q", turn.State.Data, turn.State.ErrorMessage)
	}
	if !strings.Contains(turn.Text(), "ORD-1") {
		t.Errorf("reply = %q", turn.Text())
	}
	want := pmall.ShippingAddress{Name: "Zhang", StreetAddress: "1 Zhongguancun St", City: "Beijing", ZipCode: 100080}
	if len(f.mall.orders) != 1 || f.mall.orders[0] != want {
		t.Errorf("orders = %+v", f.mall.orders)
	}
	if f.st.Len() != 0 {
		t.Error("checkpoint not cleared at end")
	}
}

// suspendAt drives a fresh thread to confirm_order with a full address.
func suspendAt(t *testing.T, f *fixture) {
	t.Helper()
	f.model.addresses = []string{`{"name": "Li", "street_address": "2 Road", "city": "Shanghai", "zip_code": "200000", "email": "li@example.com"}`}
	f.send(t, "find phones")
	f.send(t, "1")
	f.send(t, "checkout")
	if turn := f.send(t, "Li ..."); turn.Pending != StepConfirmOrder {
		t.Fatalf("pending = %q", turn.Pending)
	}
}

func TestHandleOrder_EditClearsAddress(t *testing.T) {
	f := newFixture(t)
	suspendAt(t, f)

	turn := f.send(t, "修改地址")
	if turn.Pending != StepCollectAddress || turn.Text() != addressAgain {
		t.Fatalf("pending = %q, reply = %q", turn.Pending, turn.Text())
	}
	if turn.State.Data.ShippingAddress != nil {
		t.Errorf("address = %v, want cleared", turn.State.Data.ShippingAddress)
	}
	if turn.State.Data.SelectedItem == nil {
		t.Error("other data lost on address reset")
	}

	f.model.addresses = []string{"I cannot tell"}
	turn = f.send(t, "what?")
	if turn.Pending != StepCollectAddress || turn.Text() != addressFormatHint {
		t.Errorf("pending = %q, reply = %q", turn.Pending, turn.Text())
	}
}

func TestHandleOrder_Intents(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"确认", intentConfirm},
		{"OK", intentConfirm},
		{"yes, place order", intentConfirm},
		{"确认地址", intentConfirm},
		{"No, the address looks wrong, change it", intentEdit},
		{"地址不对", intentEdit},
		{"修改地址", intentEdit},
		{"address", intentEdit},
		{"hmm", intentAsk},
	}
	for _, tt := range tests {
		if got := steps.Classify(tt.input, orderIntents); got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestHandleOrder_ChangeRequestPlacesNoOrder(t *testing.T) {
	f := newFixture(t)
	suspendAt(t, f)

	turn := f.send(t, "No, the address looks wrong, change it")
	if turn.Ended || turn.Pending != StepCollectAddress {
		t.Fatalf("ended = %v, pending = %q, reply = %q", turn.Ended, turn.Pending, turn.Text())
	}
	if len(f.mall.orders) != 0 {
		t.Errorf("orders = %+v, want none", f.mall.orders)
	}
}

func TestHandleAddress_BlankFieldKeepsCollectedValue(t *testing.T) {
	f := newFixture(t)
	f.model.addresses = []string{
		`{"name": "Zhang", "street_address": null, "city": null, "zip_code": null, "email": null}`,
		`{"name": "", "street_address": "1 Zhongguancun St", "city": "Beijing", "zip_code": 100080, "email": "z@example.com"}`,
	}
	f.send(t, "find phones")
	f.send(t, "1")
	f.send(t, "checkout")

	if turn := f.send(t, "Zhang"); turn.Pending != StepCollectAddress {
		t.Fatalf("pending = %q", turn.Pending)
	}
	turn := f.send(t, "Beijing, 1 Zhongguancun St 100080 z@example.com")
	if turn.Pending != StepConfirmOrder {
		t.Fatalf("pending = %q, reply = %q", turn.Pending, turn.Text())
	}
	if got := turn.State.Data.ShippingAddress["name"]; got != "Zhang" {
		t.Errorf("name = %v, want Zhang kept", got)
	}
}

func TestHandleOrder_Reprompt(t *testing.T) {
	f := newFixture(t)
	suspendAt(t, f)

	turn := f.send(t, "hmm")
	if turn.Pending != StepConfirmOrder || turn.Text() != orderReprompt {
		t.Errorf("pending = %q, reply = %q", turn.Pending, turn.Text())
	}
}

func TestPlaceOrder_FailureEnds(t *testing.T) {
	f := newFixture(t)
	suspendAt(t, f)
	f.mall.orderErr = errors.New("cart is empty")

	turn := f.send(t, "yes")
	if !turn.Ended {
		t.Fatalf("turn = %+v", turn)
	}
	if !strings.Contains(turn.Text(), "Order failed") || !strings.Contains(turn.Text(), "cart is empty") {
		t.Errorf("reply = %q", turn.Text())
	}
	if turn.State.RetryCount != 1 || turn.State.ErrorMessage == "" {
		t.Errorf("retry = %d, error = %q", turn.State.RetryCount, turn.State.ErrorMessage)
	}

	turn = f.send(t, "find phones")
	if turn.Pending != StepConfirmSelection || turn.State.RetryCount != 0 {
		t.Errorf("new session: pending = %q, retry = %d", turn.Pending, turn.State.RetryCount)
	}
}

func TestHandleCart_ContinueShopping(t *testing.T) {
	f := newFixture(t)
	f.send(t, "find phones")
	f.send(t, "1")

	turn := f.send(t, "continue shopping")
	if turn.Pending != StepConfirmSelection {
		t.Errorf("pending = %q, want back at %s", turn.Pending, StepConfirmSelection)
	}
}

func TestSearch_ModelErrorResetsFreshThread(t *testing.T) {
	llm := &model.MockChatModel{Err: errors.New("rate limited")}
	eng, err := New(llm, NewRegistry(newFakeMall()), store.NewMemStore[graph.State[Data]]())
	if err != nil {
		t.Fatal(err)
	}

	turn, err := eng.Send(context.Background(), "t1", "find phones")
	if err != nil {
		t.Fatal(err)
	}
	if !turn.Reset || !strings.Contains(turn.Text(), "while search") {
		t.Errorf("turn = %+v", turn)
	}
}

func TestSearch_EmptyModelAnswerKeepsResults(t *testing.T) {
	f := newFixture(t)
	f.send(t, "find phones")

	f.model.silent = true
	turn := f.send(t, "continue shopping")
	if turn.Pending != StepConfirmSelection || turn.Text() != steps.FallbackText {
		t.Fatalf("pending = %q, reply = %q", turn.Pending, turn.Text())
	}
	if got := len(turn.State.Data.SearchResults); got != 3 {
		t.Errorf("search results = %d, want the previous 3", got)
	}
}

func TestViewCart_EmptyModelAnswerStaysAtCart(t *testing.T) {
	f := newFixture(t)
	f.send(t, "find phones")

	f.model.silent = true
	turn := f.send(t, "1")
	if turn.Pending != StepConfirmCart || turn.Text() != steps.FallbackText {
		t.Fatalf("pending = %q, reply = %q", turn.Pending, turn.Text())
	}
	if turn.State.Data.Cart != nil {
		t.Errorf("cart = %+v, want none recorded", turn.State.Data.Cart)
	}
}

func TestMerge_PartialAddress(t *testing.T) {
	prev := Data{ShippingAddress: map[string]interface{}{"name": "Zhang"}, OrderID: "keep"}
	got := Merge(prev, Data{ShippingAddress: map[string]interface{}{"city": "Beijing", "name": nil}})

	want := map[string]interface{}{"name": "Zhang", "city": "Beijing"}
	if !reflect.DeepEqual(got.ShippingAddress, want) {
		t.Errorf("address = %v, want %v", got.ShippingAddress, want)
	}
	if got.OrderID != "keep" {
		t.Errorf("order id = %q", got.OrderID)
	}
	if len(prev.ShippingAddress) != 1 {
		t.Error("merge modified prev")
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	st := store.NewMemStore[graph.State[Data]]()
	if _, err := New(nil, NewRegistry(newFakeMall()), st); err == nil {
		t.Error("nil model accepted")
	}
	if _, err := New(&model.MockChatModel{}, nil, st); err == nil {
		t.Error("nil registry accepted")
	}
}
