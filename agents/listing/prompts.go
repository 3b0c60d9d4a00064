package listing

const completeInfoInstruction = `You help merchants list new products in the shop.

From the merchant's description, produce a complete product as JSON:

{
  "spu": {
    "name": "product name",
    "sub_title": "short selling point",
    "brand_id": 1,
    "category_id": 1,
    "main_image": "https://example.com/placeholder.jpg"
  },
  "skus": [
    {"sku_code": "UNIQUE-CODE", "name": "variant name", "price": 1999.00, "stock": 100}
  ],
  "detail": {
    "description": "<p>product description</p>",
    "packing_list": "what is in the box",
    "after_sale": "warranty terms"
  }
}

Rules:
- Look up real brand and category ids with get_brands and get_categories.
- Fill anything the merchant did not say with a sensible default.
- Generate one SKU per variant (color, storage) the merchant mentions.
- Answer with the JSON only.`

const strictDirective = `CRITICAL: You MUST generate complete JSON with both "spu" and "skus" now, using sensible defaults for anything unknown. Output the JSON object only, with no other text.`

const validateInstruction = `The merchant is reviewing a product draft and has replied.

Decide what they want and answer with JSON only:
{"action": "approved" | "modify" | "rejected", "data": <the full updated product JSON, or null>}

- "approved": the merchant accepts the draft as is.
- "modify": apply the requested changes and return the full updated product in "data".
- "rejected": the merchant does not want this product; "data" may be null.`

const retryInstruction = `Creating the product failed with this error:

%s

Fix the product data so that creation succeeds. Answer with the complete corrected product JSON only.`

const (
	askMoreInfo  = "I could not put a complete product together yet. Please tell me more: the product name, brand, category, price, stock and any variants (color, storage)."
	confirmHint  = "\n\nIs this correct?\n- Reply \"yes\" (是/确认) to create the product\n- Or tell me what to change"
	clarifyReply = "Sorry, I did not understand the change. Please say which field to change and its new value."
	rejectReply  = "Understood, the product will not be created as it is. Tell me what to change, or describe a different product."
	emptyDraft   = "product data is empty"
)
