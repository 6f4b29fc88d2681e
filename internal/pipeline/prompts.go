package pipeline

// The instruction texts sent to the vision model. These are part of the
// effective wire contract: the extraction prompt pins the exact JSON shape
// the parser expects, so edits here must stay in sync with internal/parse.

// ExtractPrompt asks for the full structured field set.
const ExtractPrompt = "你是发票识别专家。请仔细识别图片中的发票，按JSON格式返回数据。\n" +
	"\n" +
	"🔴【最重要】价税合计金额（total）必须准确识别！\n" +
	"这是最核心的字段，仔细查找发票上的「价税合计」或「合计」或「总金额」。\n" +
	"\n" +
	"字段说明：\n" +
	"• total: 价税合计（最重要！查找发票最下方的合计金额。仅数字，如1234.56）\n" +
	"• invoice_no: 发票号码（如00123456）\n" +
	"• issue_date: 开票日期（YYYY-MM-DD，如2024-12-01）\n" +
	"• buyer: 购买方/买方名称（需要准确）\n" +
	"• seller: 供应商/卖方名称\n" +
	"• tax: 税额（仅数字，无则为0）\n" +
	"• subtotal: 小计（仅数字，无则为0）\n" +
	"• items: 商品/服务项目（逗号分隔，最多3个）\n" +
	"• notes: 备注（空即可）\n" +
	"\n" +
	"返回格式（仅返回JSON，无其他内容）：\n" +
	"{\n" +
	"  \"invoice_no\": \"\",\n" +
	"  \"issue_date\": \"YYYY-MM-DD\",\n" +
	"  \"seller\": \"\",\n" +
	"  \"buyer\": \"\",\n" +
	"  \"total\": 0,\n" +
	"  \"tax\": 0,\n" +
	"  \"subtotal\": 0,\n" +
	"  \"items\": \"\",\n" +
	"  \"notes\": \"\"\n" +
	"}\n" +
	"\n" +
	"⚠️ 特别提醒：\n" +
	"1. total 是最关键的字段，必须准确（宁可留空也不要错误的金额）\n" +
	"2. 如果不是发票，返回所有字段为空或0\n" +
	"3. 如某字段无法识别，返回空字符串或0，不要猜测\n" +
	"4. 只返回JSON，不要添加任何说明文字"

// ValidatePrompt gates non-invoice files before extraction.
const ValidatePrompt = "请判断图片中的文件是否是发票。\n" +
	"如果是发票（增值税发票、普通发票等），返回 {\"is_invoice\": true}\n" +
	"如果不是发票（行程单、收据等），返回 {\"is_invoice\": false}\n" +
	"不要输出其他任何内容。"

// VerifyPrompt asks for an authenticity and completeness assessment.
const VerifyPrompt = "你是发票审核专家。请仔细检查这张发票的真实性和完整性。\n" +
	"\n" +
	"请检查以下项目并按JSON格式返回：\n" +
	"1. 发票印章是否清晰可见\n" +
	"2. 发票代码和发票号码是否完整\n" +
	"3. 密码区/校验码是否存在（增值税发票）\n" +
	"4. 二维码是否存在（电子发票）\n" +
	"5. 图片质量是否清晰、完整\n" +
	"6. 是否有明显的修改/PS痕迹\n" +
	"7. 金额数字与大写是否一致\n" +
	"\n" +
	"返回格式（仅JSON）：\n" +
	"{\n" +
	"  \"risk_level\": \"low/medium/high\",\n" +
	"  \"has_stamp\": true/false,\n" +
	"  \"has_complete_code\": true/false,\n" +
	"  \"has_qrcode\": true/false,\n" +
	"  \"image_quality\": \"good/fair/poor\",\n" +
	"  \"has_tampering\": true/false,\n" +
	"  \"amount_consistent\": true/false,\n" +
	"  \"risk_notes\": \"具体问题描述（如有）\"\n" +
	"}\n" +
	"\n" +
	"风险等级判断标准：\n" +
	"- low: 发票完整、清晰、无异常\n" +
	"- medium: 存在轻微问题（如图片略模糊、部分信息不清晰）\n" +
	"- high: 存在严重问题（无印章、有修改痕迹、金额不一致等）"

// ClassifyPrompt asks for the invoice type and expense category.
const ClassifyPrompt = "请识别这张发票的类型和费用类别，按JSON格式返回。\n" +
	"\n" +
	"发票类型（invoice_type）：\n" +
	"- special_vat: 增值税专用发票\n" +
	"- general_vat: 增值税普通发票\n" +
	"- electronic: 电子发票\n" +
	"- toll: 通行费发票\n" +
	"- taxi: 出租车发票\n" +
	"- train: 火车票\n" +
	"- flight: 机票行程单\n" +
	"- other: 其他类型\n" +
	"\n" +
	"费用类别（expense_category）：\n" +
	"- travel: 差旅\n" +
	"- dining: 餐饮\n" +
	"- office: 办公用品\n" +
	"- transport: 交通\n" +
	"- telecom: 通讯\n" +
	"- conference: 会议\n" +
	"- training: 培训\n" +
	"- service: 服务费\n" +
	"- material: 材料/设备\n" +
	"- other: 其他\n" +
	"\n" +
	"返回格式（仅JSON）：\n" +
	"{\n" +
	"  \"invoice_type\": \"类型代码\",\n" +
	"  \"invoice_type_name\": \"类型中文名\",\n" +
	"  \"expense_category\": \"类别代码\",\n" +
	"  \"expense_category_name\": \"类别中文名\"\n" +
	"}"
