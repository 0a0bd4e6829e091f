// Package prompt holds the text-generation prompts used by the trip stages
// and renders them from ${name} placeholders.
package prompt

import "fmt"

// Template is a named prompt text.
type Template struct {
	Name string
	Text string
}

var strict = NewExpander()

// Render expands t with vars. Every placeholder must be supplied.
func (t Template) Render(vars map[string]any) (string, error) {
	out, err := strict.Expand(t.Text, vars)
	if err != nil {
		return "", fmt.Errorf("prompt %s: %w", t.Name, err)
	}
	return out, nil
}

// Extraction turns a free-text trip request into structured parameters.
var Extraction = Template{Name: "extraction", Text: `
你是一个严谨的行程规划助手，你的任务是从用户提供的原始文本中，精确地提取所有关键的行程参数。
如果用户没有明确提供某些信息，请尽力根据上下文推断，无法推断的字段留空。
时间一律使用 'YYYY-MM-DD HH:MM' 格式，日期使用 'YYYY-MM-DD' 格式。

原始用户输入文本:
---
${user_input}
---

请只输出一个 JSON 对象，结构如下：
${schema}
`}

// TransportDecision asks for the best offer under the arrival deadline.
var TransportDecision = Template{Name: "transport_decision", Text: `
你是一个专业的商务出差行程规划 AI。

--- 决策模式判断 ---
你必须根据【出发日期 ${departure_date}】与【会议时间 ${meeting_start}】是否为同一天，判断决策模式：

1. 若为同一天：采用【准时到达模式】，只需保证能够按时参加会议，不需要为当日安排调研或额外活动预留时间。
2. 若出发日期早于会议日期：采用【舒适平衡模式】，优先选择下午或傍晚（16:00–20:00）到达目的地城市的班次，避免过早或过晚到达。

--- 硬性时间约束 ---
- 会议开始时间：${meeting_start}
- 枢纽 → 会议地通勤时间：${arrival_commute_minutes} 分钟
- 最晚允许到达枢纽时间（已含缓冲）：${latest_hub_arrival}

任何到达枢纽时间晚于该时间的班次，必须直接排除。

--- 候选交通方案 ---
${transport_options}

--- 输出要求 ---
- 首先过滤掉不满足最晚到达枢纽时间的方案，再根据当前模式选择最优方案
- 仅输出 JSON，不要包含额外文本，格式为：
{"type": "<Flight 或 Train>", "id": "<班次编号>", "reasoning": "<选择理由>"}
`}

// Day1Plan schedules the arrival day.
var Day1Plan = Template{Name: "day1_plan", Text: `
你是一个行程规划助手。请根据以下信息，生成 Day 1 的完整行程：

1. 到达交通段:
${arrival_transport}

2. Day 1 固定事务:
${day1_fixed_events}

3. 用户出差信息:
${user_params}

4. 通勤矩阵（地点ID到地点ID的驾车时间，单位：分钟；LOC_0 为到达枢纽，LOC_1 为酒店，其后依次为固定事务）:
${commute_matrix}

要求：
- 输出 JSON 数组，每个元素包含 type、description、start_time、end_time、location、details
` + itemRules + `
- 规划必须从到达交通段的到达时间开始计算，并包含到达交通段和所有 Day 1 固定事务
- 新生成的市内通勤必须使用通勤矩阵中的时间来确定 end_time
- 只生成连接固定事务和交通所必需的中间步骤，一天的行程一定以回酒店作为结束
- 严禁生成发散的、非必需的活动（如午餐、自由活动）
- 不要输出多余文字，只返回 JSON 数组
`}

// Day23Plan schedules the two days after arrival.
var Day23Plan = Template{Name: "day23_plan", Text: `
你是一个出差行程规划助手。请根据以下信息，为 Day 2（${day2_date}）和 Day 3（${day3_date}）生成完整行程：

1. 用户固定事件：
Day 2 固定事件:
${day2_events}

Day 3 固定事件:
${day3_events}

2. 待调研企业（可能为空）:
${companies}

3. 用户出差信息:
${user_params}

4. 酒店信息（每天的起点和终点）:
${hotel}

5. 通勤矩阵（地点ID到地点ID的驾车时间，单位：分钟；LOC_0 为酒店，其后依次为 Day 2 事件、Day 3 事件、待调研企业）:
${commute_matrix}

要求：
- 输出 JSON 数组，每个元素包含 type、description、start_time、end_time、location、details
` + itemRules + `
- 每一天的行程必须从酒店出发，包含所有固定事件和调研企业访问（如果有），并最终回到酒店
- 调研任务尽量不安排在中午时间
- 新生成的市内通勤必须使用通勤矩阵中的时间来确定 end_time
- 如果某一天没有待调研企业，仅规划固定事件；如果某一天无任何事务，该天不需要规划
- 不要输出多余文字，只返回 JSON 数组
`}

const itemRules = `- type 仅限以下符号：✈️ 跨城航班，🚄 跨城高铁，🚗 市内通勤，🏢 企业调研，🤝 商务会议，🏨 酒店入住或出发，📍 其他行动
- start_time 与 end_time 使用 'YYYY-MM-DD HH:MM' 格式
- location 为 {"city": "...", "address": "...", "name": "...", "lat": ..., "lon": ...}，没有值的字段填 null
- details 为自由字段，可包含 price、duration、notes
- 顺序必须按照实际发生顺序`

// CompanyRecommendations asks for research targets in a city.
var CompanyRecommendations = Template{Name: "company_recommendations", Text: `
你是一名专业的商务调研分析师。请为城市【${city}】推荐 ${count} 家有价值的知名科技或核心企业。
这些企业应适合商务访问或调研，企业必须真实存在。
请仅输出企业名称，用顿号或换行分隔，不要包含其他解释。
`}

// CompanyAddress asks for a geocodable address of a company.
var CompanyAddress = Template{Name: "company_address", Text: `
你是一个地理信息助手。
请根据【公司名称】和【城市】给出一个适合高德地图地理编码的精确中文地址。

要求：
- 只输出一行中文地址，不要解释，不要 JSON
- 地址需尽量具体（区 / 街道 / 园区 / 楼宇）
- 如果无法确定，请给出该公司总部或主要办公地址

公司名称：${company_name}
城市：${city}
`}

const tableFormat = `| 日期/天数 | 时间 | 类型 | 内容 | 地点 |
| :--- | :--- | :--- | :--- | :--- |`

// FinalTable renders the merged itinerary as a Markdown table.
var FinalTable = Template{Name: "final_table", Text: `
你是一个行程信息整理助手。

下面是用户已经确定好的完整行程（JSON 数组，按时间顺序）：
${final_itinerary}

你的任务是将这些行程整理成 Markdown 表格，表格格式必须严格如下（不允许新增或删除列）：

` + tableFormat + `

规则：
1. 一行对应一个行程项
2. 日期/天数只能是 Day 1、Day 2 或 Day 3，并写出具体日期
3. 时间格式必须是 HH:MM-HH:MM
4. 地点优先使用 location.name，其次 location.address，都没有则填 None
5. 只输出 Markdown 表格本身，不要添加解释、总结或标题
`}

// FinalRefine re-renders the report under a user instruction.
var FinalRefine = Template{Name: "final_refine", Text: `
你是一个出差行程优化助手。

下面是当前完整行程的结构化数据（JSON 数组，按时间顺序）：
${final_itinerary}

这是上一次生成的行程表：
${previous_report}

用户对行程提出了如下修改要求：
${instruction}

请输出修改后的 Markdown 表格，格式必须严格如下（不允许新增或删除列）：

` + tableFormat + `

规则：
- 在尽量少改动原行程的前提下，根据修改要求进行必要的调整，未被明确要求修改的部分保持不变
- 禁止自行新增、删除或合并行程天数，禁止引入新的企业、会议或活动，除非用户明确要求
- 所有时间必须合理、连续，不得出现重叠或倒退
- 固定事件不得被删除或更改其核心时间
- 若修改要求存在歧义，请选择最保守、最小改动的方案
- 只输出 Markdown 表格本身
`}

// All lists every template, for validation.
var All = []Template{
	Extraction,
	TransportDecision,
	Day1Plan,
	Day23Plan,
	CompanyRecommendations,
	CompanyAddress,
	FinalTable,
	FinalRefine,
}
