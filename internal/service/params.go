package service

import (
	"math"
	"strconv"
	"strings"

	"QuestLoop/internal/model"
	"QuestLoop/pkg/errors"
)

// ParamValue 请求层归一化后的参数，DetailID 为子任务模板 ID
type ParamValue struct {
	Value    string
	DetailID int64
}

// resolvedParam 校验通过、待写入的参数
type resolvedParam struct {
	numeric *float64
	text    *string
	index   int
}

// resolveParams 按子任务类型校验整批参数，任何字段失败都不写入
func resolveParams(details []model.UserQuestDetailValue, values []ParamValue) ([]resolvedParam, error) {
	byTemplate := make(map[int64]int, len(details))
	for i, d := range details {
		byTemplate[d.DetailTemplateID] = i
	}

	verr := &errors.ValidationError{}
	submitted := make(map[int64]struct{}, len(values))
	resolved := make([]resolvedParam, 0, len(values))

	for _, pv := range values {
		idx, ok := byTemplate[pv.DetailID]
		if !ok {
			verr.Add(pv.DetailID, "detail_id", "does not belong to this quest")
			continue
		}
		if _, dup := submitted[pv.DetailID]; dup {
			verr.Add(pv.DetailID, "detail_id", "submitted more than once")
			continue
		}
		submitted[pv.DetailID] = struct{}{}

		raw := strings.TrimSpace(pv.Value)
		tpl := details[idx].DetailTemplate
		if raw == "" && tpl.RequiresParam {
			verr.Add(pv.DetailID, "value", "is required")
			continue
		}

		rp := resolvedParam{index: idx}
		switch tpl.ParamType {
		case model.ParamTypeNumeric:
			if raw == "" {
				resolved = append(resolved, rp)
				continue
			}
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil || !isDecimal(raw) || math.IsNaN(n) || math.IsInf(n, 0) {
				verr.Add(pv.DetailID, "value", "must be numeric")
				continue
			}
			rp.numeric = &n
		default:
			rp.text = &raw
		}
		resolved = append(resolved, rp)
	}

	for _, d := range details {
		if !d.DetailTemplate.RequiresParam {
			continue
		}
		if _, ok := submitted[d.DetailTemplateID]; !ok {
			verr.Add(d.DetailTemplateID, "value", "is required")
		}
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return resolved, nil
}

// isDecimal 只接受十进制写法，ParseFloat 还会接受 0x1p4 这类十六进制浮点数
func isDecimal(raw string) bool {
	return !strings.ContainsAny(raw, "xXpP_")
}
