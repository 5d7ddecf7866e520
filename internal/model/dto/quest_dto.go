package dto

import (
	"bytes"
	"encoding/json"
	"strconv"

	"QuestLoop/internal/service"
	"QuestLoop/pkg/errors"
)

// ========== Quest 相关 DTO ==========

// ToggleDetailRequest 勾选或取消子任务
type ToggleDetailRequest struct {
	Checked *bool `json:"checked"`
}

// RewardLogQuery 结算记录分页参数
type RewardLogQuery struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// SubmitParamsRequest 参数提交，每一项可以是 {detail_id, value} 或 {detail: {id}, value}
type SubmitParamsRequest struct {
	Params []ParamInput `json:"params"`
}

type ParamInput struct {
	DetailID *int64          `json:"detail_id"`
	Detail   *DetailRef      `json:"detail"`
	Value    json.RawMessage `json:"value"`
}

type DetailRef struct {
	ID int64 `json:"id"`
}

// Normalize 把两种形状统一成 service.ParamValue，value 接受字符串、数字或 null
func (r SubmitParamsRequest) Normalize() ([]service.ParamValue, error) {
	verr := &errors.ValidationError{}
	out := make([]service.ParamValue, 0, len(r.Params))

	for i, p := range r.Params {
		var id int64
		switch {
		case p.DetailID != nil:
			id = *p.DetailID
		case p.Detail != nil:
			id = p.Detail.ID
		default:
			verr.Add(0, "params["+strconv.Itoa(i)+"].detail_id", "is required")
			continue
		}

		value, ok := scalarString(p.Value)
		if !ok {
			verr.Add(id, "value", "must be a string or a number")
			continue
		}
		out = append(out, service.ParamValue{DetailID: id, Value: value})
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return out, nil
}

func scalarString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", true
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false
		}
		return n.String(), true
	default:
		return "", false
	}
}
