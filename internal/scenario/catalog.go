package scenario

import (
	"fmt"
	"strings"
)

// Entry 单个场景的提示词与处置建议
type Entry struct {
	Description     string
	VisionPrompt    string // 第一阶段：开放式视觉分析
	ConfirmTemplate string // 第二阶段：二元复核，%s 处代入第一阶段原文
	Action          string // 确认违规后的处置建议
}

// catalog 场景 -> 提示词/处置建议 静态表
var catalog = map[Scenario]Entry{
	SmokeDetection: {
		Description:     "Detect smoke or smoke-like substances in the image",
		VisionPrompt:    "Analyze this image carefully. Do you see any smoke, steam, or smoke-like substances visible? Look for white, gray, or dark clouds of smoke, steam from machinery, or any other smoke-like emissions. Respond with a clear description of what you observe.",
		ConfirmTemplate: "Based on this vision analysis: '%s', answer with ONLY 'yes' or 'no': Is there smoke or smoke-like substance detected in the image?",
		Action:          "Immediately investigate source of smoke and evacuate if necessary",
	},
	FireDetection: {
		Description:     "Detect fire or flames in the image",
		VisionPrompt:    "Examine this image thoroughly. Do you see any fire, flames, or burning materials? Look for visible flames, glowing embers, or signs of combustion. Describe what you observe regarding fire or burning.",
		ConfirmTemplate: "Based on this vision analysis: '%s', answer with ONLY 'yes' or 'no': Is there fire or flames detected in the image?",
		Action:          "Activate fire alarm, call emergency services, and evacuate area",
	},
	FallDetection: {
		Description:     "Detect if a person has fallen or is in a dangerous position",
		VisionPrompt:    "Carefully analyze this image. Do you see any person who appears to have fallen, is lying down, or is in an unusual position that might indicate they have fallen or are in distress? Look for people on the ground, in awkward positions, or showing signs of injury.",
		ConfirmTemplate: "Based on this vision analysis: '%s', answer with ONLY 'yes' or 'no': Is there a person who has fallen or appears to be in a dangerous position?",
		Action:          "Provide immediate medical assistance and secure the area",
	},
	DebrisDetection: {
		Description:     "Detect debris, obstacles, or hazardous materials on the ground",
		VisionPrompt:    "Examine this image for any debris, scattered objects, or hazardous materials on the ground or floor. Look for broken equipment, spilled materials, loose objects, or anything that could pose a safety hazard or obstruction.",
		ConfirmTemplate: "Based on this vision analysis: '%s', answer with ONLY 'yes' or 'no': Is there debris, obstacles, or hazardous materials detected on the ground?",
		Action:          "Clear debris and investigate source of obstruction",
	},
	MissingFireExtinguisher: {
		Description:     "Check if fire extinguisher is present in designated location",
		VisionPrompt:    "Look at this image and check if there is a fire extinguisher present in its designated location. Fire extinguishers are typically red cylinders mounted on walls or in cabinets. Is the fire extinguisher visible in its expected location?",
		ConfirmTemplate: "Based on this vision analysis: '%s', answer with ONLY 'yes' or 'no': Is the fire extinguisher missing from its designated location?",
		Action:          "Replace missing fire extinguisher immediately",
	},
	UnattendedObject: {
		Description:     "Detect unattended objects or suspicious items",
		VisionPrompt:    "Analyze this image for any unattended objects, suspicious items, or objects that appear to be left behind. Look for bags, packages, tools, or other items that seem to be abandoned or left unattended in the area.",
		ConfirmTemplate: "Based on this vision analysis: '%s', answer with ONLY 'yes' or 'no': Are there unattended objects or suspicious items detected in the image?",
		Action:          "Investigate unattended object and remove if safe to do so",
	},
}

// Lookup 查表；未知场景返回 ErrUnknown
func Lookup(s Scenario) (Entry, error) {
	e, ok := catalog[s]
	if !ok {
		return Entry{}, ErrUnknown{Name: string(s)}
	}
	return e, nil
}

// ConfirmPrompt 将第一阶段原文代入复核模板。
// 单引号替换为反引号，避免破坏模板中的引号边界。
func (e Entry) ConfirmPrompt(visionResponse string) string {
	safe := strings.ReplaceAll(visionResponse, "'", "`")
	return fmt.Sprintf(e.ConfirmTemplate, safe)
}
