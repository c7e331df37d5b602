package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/ppiankov/kidregistry/internal/logger"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/taxonomy"
)

// ExtractedName is one suspect the model found in a news item
type ExtractedName struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Confidence int    `json:"confidence"`
	Context    string `json:"context"`
}

// RoleTag maps the model's free-form role onto the closed role set
func (n ExtractedName) RoleTag() model.RoleTag { return taxonomy.Role(n.Role) }

type extraction struct {
	Names   []ExtractedName `json:"names"`
	Summary string          `json:"summary"`
}

const systemPrompt = `你是一個專門分析台灣兒少安全新聞的助手。你的任務是從新聞中提取涉案人（加害者）的姓名和角色。

規則：
1. 只提取加害者或嫌疑人，不要提取受害者或其他人的姓名
2. 姓名必須是中文姓名格式，例如完整姓名「王小明」、遮罩姓名「王○○」「陳○明」、姓氏稱謂「王姓男子」「吳男」
3. 不要提取親屬稱謂，例如哥哥、妹妹、父親、母親、叔叔、阿姨
4. 不要提取化名或代稱，例如小明、A男、B女
5. 標註涉案人角色，例如家教、保母、老師、教練
6. 對每個結果給出信心度（0-100）
7. 新聞中沒有提到姓名時，names 回傳空陣列

只回應 JSON：{"names":[{"name":"","role":"","confidence":0,"context":""}],"summary":""}`

// kinship terms and stand-in aliases never name a suspect
var rejectedNames = []string{
	"哥哥", "姊姊", "姐姐", "弟弟", "妹妹", "父親", "母親", "爸爸", "媽媽",
	"叔叔", "阿姨", "伯伯", "舅舅", "爺爺", "奶奶", "外婆", "外公", "繼父", "繼母", "男友", "女友",
}

var aliasName = regexp.MustCompile(`^(小[\p{Han}]|[A-Za-zＡ-Ｚ][男女童])$`)

var jsonBlock = regexp.MustCompile("(?s)\\{.*\\}")

// NameExtractor asks a Provider for suspect names and filters the reply
type NameExtractor struct {
	provider      Provider
	minConfidence int
	log           *logger.Logger
}

// NewNameExtractor keeps names scored at or above minConfidence
func NewNameExtractor(p Provider, minConfidence int) *NameExtractor {
	return &NameExtractor{provider: p, minConfidence: minConfidence, log: logger.Named("llm")}
}

// Extract returns the plausible suspect names in a news item, in reply order, deduplicated
func (e *NameExtractor) Extract(ctx context.Context, title, content string) ([]ExtractedName, error) {
	resp, err := e.provider.Complete(ctx, CompletionRequest{
		System: systemPrompt,
		Prompt: fmt.Sprintf("請分析以下新聞，提取涉案人（加害者）的姓名和角色：\n\n標題：%s\n\n內容：%s", title, content),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.provider.Name(), err)
	}

	names, err := parseExtraction(resp.Text)
	if err != nil {
		return nil, err
	}

	var out []ExtractedName
	seen := make(map[string]bool)
	for _, n := range names {
		n.Name = strings.TrimSpace(n.Name)
		if n.Confidence < e.minConfidence || !PlausibleName(n.Name) || seen[n.Name] {
			logger.C(ctx, e.log).Debug().Str("name", n.Name).Int("confidence", n.Confidence).Msg("rejected extracted name")
			continue
		}
		seen[n.Name] = true
		out = append(out, n)
	}
	return out, nil
}

// parseExtraction tolerates prose or code fences around the JSON object
func parseExtraction(text string) ([]ExtractedName, error) {
	raw := jsonBlock.FindString(text)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in model reply")
	}
	var ex extraction
	if err := json.Unmarshal([]byte(raw), &ex); err != nil {
		return nil, fmt.Errorf("decode model reply: %w", err)
	}
	return ex.Names, nil
}

// PlausibleName rejects kinship terms, aliases and strings that are not 2-5 Han or mask characters
func PlausibleName(name string) bool {
	r := []rune(name)
	if len(r) < 2 || len(r) > 5 {
		return false
	}
	for _, term := range rejectedNames {
		if strings.Contains(name, term) {
			return false
		}
	}
	if aliasName.MatchString(name) {
		return false
	}
	for _, c := range r {
		if !unicode.Is(unicode.Han, c) && c != model.MaskGlyph && c != '〇' {
			return false
		}
	}
	return true
}
