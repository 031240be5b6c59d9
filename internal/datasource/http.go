package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPConfig 调度引擎 REST 接口配置
type HTTPConfig struct {
	// Endpoint API 根地址，例如 http://host:12345/dolphinscheduler
	Endpoint string
	// Token 访问令牌，放在 token 请求头
	Token   string
	Timeout time.Duration
	Client  *http.Client
}

// HTTPLookup 通过数据源列表接口查询
type HTTPLookup struct {
	endpoint string
	token    string
	client   *http.Client
}

// listPage 单页查询结果
type listPage struct {
	TotalList []Record
	Total     int
}

// pageSize 每页条数
const pageSize = 100

type listResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TotalList []Record `json:"totalList"`
		Total     int      `json:"total"`
	} `json:"data"`
}

// NewHTTPLookup 创建 REST 查询
func NewHTTPLookup(cfg HTTPConfig) (*HTTPLookup, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("datasource endpoint is required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid datasource endpoint: %w", err)
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPLookup{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.Token,
		client:   client,
	}, nil
}

// Lookup 按名称搜索并精确匹配
//
// searchVal 是模糊匹配，逐页查找直到命中或翻到最后一页。
func (h *HTTPLookup) Lookup(ctx context.Context, name string) (Record, error) {
	for pageNo := 1; ; pageNo++ {
		page, err := h.fetchPage(ctx, name, pageNo)
		if err != nil {
			return Record{}, err
		}
		for _, rec := range page.TotalList {
			if rec.Name == name {
				return rec, nil
			}
		}
		if len(page.TotalList) < pageSize || (page.Total > 0 && pageNo*pageSize >= page.Total) {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
	}
}

func (h *HTTPLookup) fetchPage(ctx context.Context, name string, pageNo int) (*listPage, error) {
	q := url.Values{}
	q.Set("searchVal", name)
	q.Set("pageNo", strconv.Itoa(pageNo))
	q.Set("pageSize", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint+"/datasources?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build datasource request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if h.token != "" {
		req.Header.Set("token", h.token)
	}
	if traceID := TraceID(ctx); traceID != "" {
		req.Header.Set("traceId", traceID)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request datasource %q: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("request datasource %q: status %d: %s", name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode datasource response: %w", err)
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("request datasource %q: code %d: %s", name, out.Code, out.Msg)
	}
	return &listPage{TotalList: out.Data.TotalList, Total: out.Data.Total}, nil
}
