package gateway

// Prompts for the extraction operations. Car catalogs are frequently
// Japanese-language spec sheets, so the prompts spell out unit handling and
// full-width glyph issues explicitly.

const extractTextPrompt = `Transcribe the complete text content of this car catalog document.

Rules:
- Transcribe every page in reading order, including tables and footnotes.
- Preserve table structure using markdown tables where possible.
- Keep original units (e.g. 万円, km/L, PS, N・m) exactly as printed.
- Do not summarize, interpret, or omit anything.
- Output only the transcription, no commentary.`

const extractRecordsPrompt = `Extract every car variant (grade/trim) from this catalog document as a JSON array.

Each element must have exactly these keys:
  "manufacturer"  string  - brand name (required)
  "model_name"    string  - model name (required)
  "grade"         string  - grade or trim level (required)
  "price"         number  - price in yen as a plain number, no separators (required)
  "issue_date"    string or null - catalog issue date if printed
  "engine_type"   string or null
  "displacement"  string or null - e.g. "1,496 cc"
  "max_power"     string or null - e.g. "91 PS / 5,500 rpm"
  "max_torque"    string or null
  "fuel_economy"  string or null - e.g. "28.4 km/L (WLTC)"
  "options"       array of strings - notable factory options, [] if none

Rules:
- One element per grade. A model with five grades yields five elements.
- Use null for any value the document does not state. Never guess.
- Prices listed in 万円 must be converted to yen (e.g. 259.8万円 -> 2598000).
- Output only the JSON array. No markdown fences, no commentary.`

const summarizePrompt = `Summarize the following car catalog content in 3-5 sentences.
Cover the model lineup, the price range, and anything notable about the
powertrain options. Write plain prose, no lists or headings.

Catalog content:
`

const chatSystemPrompt = `You are an assistant answering questions about a set of car specifications
extracted from a catalog. The full extracted data is provided below as JSON.

Rules:
- Answer only from the provided data. If the data does not contain the
  answer, say so plainly instead of guessing.
- Decline questions unrelated to the provided car data.
- When quoting prices or specs, use the exact values from the data.

Extracted data:
`
