package docsynth

import (
	"fmt"
	"strings"
)

// Persona 文档视角
type Persona string

const (
	PersonaSDE  Persona = "sde"  // 面向开发者：实现细节、接口契约
	PersonaPM   Persona = "pm"   // 面向产品：能力、用户流程
	PersonaBoth Persona = "both" // 两者兼顾
)

// ResolvePersona 解析本次生成使用的视角
// 项目级配置约束单次请求：取交集，冲突时项目配置优先
// requested 为空时使用项目配置
func ResolvePersona(projectPersona, requested string) (Persona, error) {
	project, err := parsePersona(projectPersona)
	if err != nil {
		return "", fmt.Errorf("invalid project persona: %w", err)
	}

	if strings.TrimSpace(requested) == "" {
		return project, nil
	}

	req, err := parsePersona(requested)
	if err != nil {
		return "", err
	}

	if project == PersonaBoth {
		return req, nil
	}
	// 项目已限定单一视角，请求无法放宽
	return project, nil
}

func parsePersona(value string) (Persona, error) {
	switch Persona(strings.ToLower(strings.TrimSpace(value))) {
	case PersonaSDE:
		return PersonaSDE, nil
	case PersonaPM:
		return PersonaPM, nil
	case PersonaBoth, "":
		return PersonaBoth, nil
	default:
		return "", fmt.Errorf("unknown persona %q, expected sde|pm|both", value)
	}
}

// instruction 视角对应的写作指令，拼入章节生成提示词
func (p Persona) instruction() string {
	switch p {
	case PersonaSDE:
		return "Write for software engineers: cover implementation details, interfaces, data flow, and extension points."
	case PersonaPM:
		return "Write for product managers: cover capabilities, user-facing behavior, and limitations. Avoid implementation detail."
	default:
		return "Write for a mixed audience of engineers and product managers: lead with capabilities, then implementation notes."
	}
}
