package order

const searchInstruction = `You are the shopping assistant of an online mall.
When the user mentions any product, brand or budget, call search_products right away. Never recommend products from memory.
If the user is only chatting, answer briefly and ask what they would like to buy.`

const searchSummaryInstruction = `Show the search results to the user as a numbered list (1, 2, 3, ...) in exactly the order they appear in the results.
For each product give its name, price and stock. Do not add products that are not in the results.
End by asking the user to reply with the number of the product to add to the cart, or "view cart" (查看购物车).`

const selectionInstruction = `You are helping the user choose from the product list shown above.
Use the tools when the user asks for details, a different search, or a cart change.
Otherwise answer briefly and remind them to reply with a product number.`

const viewCartInstruction = `The user wants to see the shopping cart. Call view_cart.`

const cartSummaryInstruction = `Show the cart to the user: each line with name, price and quantity, then the total.
End with: reply "checkout" (去结算) to continue, or "continue shopping" (继续购物) to add more products.`

const addressExtractPrompt = `Extract the shipping information from the user input below. The user may write it in any format or order.

User input: %s

Fields:
- name: recipient name, e.g. "张三", "Zhang Wei"
- street_address: street, building and door number, e.g. "海淀区西土城路10号"
- city: e.g. "北京市", "Shanghai"
- zip_code: 6-digit number, e.g. 100876
- email: e.g. test@qq.com; take the first one if several are given

Rules:
- Extract every field you can recognise and set the others to null.
- zip_code must be an integer.
- Reply with the JSON object only: {"name": ..., "street_address": ..., "city": ..., "zip_code": ..., "email": ...}`

const addressRequest = `Let's collect your shipping information. Please provide:
1. Recipient name (收货人姓名)
2. Street address (详细地址)
3. City (城市)
4. Zip code (邮编)
5. Email (邮箱)`

const addressFormatHint = `Sorry, I could not read your address.

Please use this format:
name city street-address zip-code email

Example: Zhang San Beijing 1 Zhongguancun Street 100080 test@qq.com`

const cartReprompt = `Reply "checkout" (去结算) to continue, or "continue shopping" (继续购物) to add more products.`

const orderReprompt = `Reply "confirm" (确认) to place the order, or "change" (修改) to enter the address again.`

const addressAgain = `OK, please enter the shipping information again.`
