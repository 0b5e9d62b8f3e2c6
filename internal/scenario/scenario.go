package scenario

import (
	"fmt"
	"strings"
)

// 中文说明：
// 场景为封闭枚举：新增场景必须同时补全 catalog 表项，
// All/Parse/静态表在编译期可见，避免运行时字符串散落各处。

// Scenario 安全场景标识
type Scenario string

const (
	SmokeDetection          Scenario = "smoke_detection"
	FireDetection           Scenario = "fire_detection"
	FallDetection           Scenario = "fall_detection"
	DebrisDetection         Scenario = "debris_detection"
	MissingFireExtinguisher Scenario = "missing_fire_extinguisher"
	UnattendedObject        Scenario = "unattended_object"
)

// ErrUnknown 请求了目录之外的场景
type ErrUnknown struct{ Name string }

func (e ErrUnknown) Error() string { return fmt.Sprintf("未知场景: %s", e.Name) }

var all = []Scenario{
	SmokeDetection,
	FireDetection,
	FallDetection,
	DebrisDetection,
	MissingFireExtinguisher,
	UnattendedObject,
}

// All 返回全部场景（固定顺序的拷贝）
func All() []Scenario {
	out := make([]Scenario, len(all))
	copy(out, all)
	return out
}

// Parse 将外部输入映射为场景枚举；目录外的名称返回 ErrUnknown
func Parse(s string) (Scenario, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	sc := Scenario(name)
	if _, ok := catalog[sc]; !ok {
		return "", ErrUnknown{Name: s}
	}
	return sc, nil
}

// ParseList 解析场景列表；"all" 或空展开为全部场景
func ParseList(names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return All(), nil
	}
	seen := map[Scenario]struct{}{}
	out := make([]Scenario, 0, len(names))
	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), "all") {
			return All(), nil
		}
		sc, err := Parse(n)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[sc]; ok {
			continue
		}
		seen[sc] = struct{}{}
		out = append(out, sc)
	}
	return out, nil
}

// DisplayName 展示名："smoke_detection" -> "Smoke Detection"
func (s Scenario) DisplayName() string {
	parts := strings.Split(string(s), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
