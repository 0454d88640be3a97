package http

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// predictionCache 以编码后的特征向量为键缓存预测结果，nil 表示禁用
type predictionCache struct {
	entries *lru.Cache[string, string]
}

func newPredictionCache(size int) (*predictionCache, error) {
	if size <= 0 {
		return nil, nil
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &predictionCache{entries: entries}, nil
}

func (c *predictionCache) Get(vector []float64) (string, bool) {
	if c == nil {
		return "", false
	}
	return c.entries.Get(vectorKey(vector))
}

func (c *predictionCache) Add(vector []float64, prediction string) {
	if c == nil {
		return
	}
	c.entries.Add(vectorKey(vector), prediction)
}

func (c *predictionCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func vectorKey(vector []float64) string {
	var sb strings.Builder
	for i, v := range vector {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return sb.String()
}
