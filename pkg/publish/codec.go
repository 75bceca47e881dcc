package publish

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/diagnostic-updater/pkg/diagnostic"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeBatch 批次编码为 JSON（文件、Redis、MQTT、HTTP 共用）
func EncodeBatch(b *diagnostic.Batch) ([]byte, error) {
	return json.Marshal(b)
}

// DecodeBatch 解码 JSON 批次
func DecodeBatch(data []byte) (*diagnostic.Batch, error) {
	var b diagnostic.Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
