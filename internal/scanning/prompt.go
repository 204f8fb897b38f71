package scanning

// receiptScanPrompt is shared by all model backends when scanning receipts
const receiptScanPrompt = `You are an expert at reading fiscal receipts. Extract ONLY information that is VISIBLE in the attached receipt image. Do not invent, guess or make up values.

Read the image carefully and extract exactly what you can see:

1. **Total Amount**: Look for "TOTAL", "AMOUNT DUE", "TOTAL A PAGAR" or similar. Extract the exact number written.
2. **Date**: Look for the purchase date (DD/MM/YYYY or similar). Convert it to YYYY-MM-DD.
3. **Time**: Look for the purchase time (HH:MM). Use null if it is not printed.
4. **Merchant**: The business name, usually at the top of the receipt.
5. **Category**: Based on the ITEMS you see, classify the expense as exactly one of: "food", "transport", "leisure", "health", "education", "housing", "other".
6. **Items**: List the products or services you can read on the receipt.

Return ONLY valid JSON in this exact format:
{
  "totalAmount": <number read from the receipt, or 0 if not visible>,
  "receiptDate": "YYYY-MM-DD",
  "receiptTime": "HH:MM" or null,
  "merchantName": "<exact merchant name>" or null,
  "category": "<one of the categories above>",
  "extras": {
    "items": [<items visible on the receipt>],
    "taxId": "<tax id if visible>",
    "address": "<address if visible>"
  }
}

Important:
- If a field is not clearly visible, use null for it
- The amount must be a number, not a string
- Do not include any text before or after the JSON
- Do not use markdown code blocks`
