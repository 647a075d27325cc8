package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassifyCategoryFirstMatchWins(t *testing.T) {
	e := NewEngine()
	e.Replace(&Ruleset{
		Categories: []CategoryRule{
			{Category: "식비", Keywords: []string{"스타벅스", "카페"}},
			{Category: "쇼핑", Keywords: []string{"스타벅스몰"}},
		},
	})

	if got := e.ClassifyCategory("스타벅스몰 주문"); got != "식비" {
		t.Errorf("ClassifyCategory = %q, want first matching rule 식비", got)
	}
}

func TestClassifyCategoryCaseInsensitive(t *testing.T) {
	e := NewEngine()
	if got := e.ClassifyCategory("NETFLIX 결제"); got != "구독" {
		t.Errorf("ClassifyCategory = %q, want 구독", got)
	}
}

func TestClassifyCategoryFallsBackToOther(t *testing.T) {
	e := NewEngine()
	if got := e.ClassifyCategory("동네 철물점"); got != Other {
		t.Errorf("ClassifyCategory = %q, want %q", got, Other)
	}
}

func TestClassifyChannelDefaults(t *testing.T) {
	e := NewEngine()

	cases := map[string]string{
		"삼성카드 승인":   "삼성카드",
		"KB국민 체크카드": "국민카드",
		"토스뱅크 입금":   "토스뱅크",
		"모르는 은행":     Other,
	}
	for text, want := range cases {
		if got := e.ClassifyChannel(text); got != want {
			t.Errorf("ClassifyChannel(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestReplaceNilRestoresDefaults(t *testing.T) {
	e := NewEngine()
	e.Replace(&Ruleset{
		Categories: []CategoryRule{{Category: "테스트", Keywords: []string{"뭐든"}}},
	})
	if got := e.ClassifyCategory("뭐든 산다"); got != "테스트" {
		t.Fatalf("custom ruleset not active, got %q", got)
	}

	e.Replace(nil)
	if got := e.ClassifyCategory("스타벅스"); got != "식비" {
		t.Errorf("defaults not restored, ClassifyCategory = %q", got)
	}
}

func TestReplaceEmptyRestoresDefaults(t *testing.T) {
	e := NewEngine()
	e.Replace(&Ruleset{})
	if got := e.ClassifyChannel("삼성카드"); got != "삼성카드" {
		t.Errorf("defaults not restored, ClassifyChannel = %q", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
categories:
  - category: 식비
    keywords: [김밥천국, 국밥]
banks:
  - keyword: 신한
    name: 신한카드
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(rs.Categories) != 1 || rs.Categories[0].Category != "식비" {
		t.Fatalf("categories = %+v", rs.Categories)
	}
	if len(rs.Banks) != 1 || rs.Banks[0].Name != "신한카드" {
		t.Fatalf("banks = %+v", rs.Banks)
	}
}

func TestLoadFileBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("categories: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}
