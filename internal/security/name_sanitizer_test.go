package security

import "testing"

// HTMLタグが全て除去されることを検証
func TestNameSanitizer_StripsHTML(t *testing.T) {
	s := NewNameSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "グルテンフリーパン", "グルテンフリーパン"},
		{"scriptタグを除去", `<script>alert("x")</script>米粉パスタ`, "米粉パスタ"},
		{"装飾タグを除去", "<b>店舗A</b>", "店舗A"},
		{"imgタグを除去", `パン<img src="https://example.com/x.png">`, "パン"},
		{"前後の空白を除去", "  シリアル  ", "シリアル"},
		{"空文字列は空のまま", "", ""},
		{"記号を含む平文は保持", "A&B ベーカリー", "A&B ベーカリー"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// 同一入力に対して常に同一出力を返すこと（冪等性）を検証
func TestNameSanitizer_Idempotent(t *testing.T) {
	s := NewNameSanitizer()
	input := `<a href="https://example.com">店舗</a>`

	first := s.Sanitize(input)
	second := s.Sanitize(first)

	if first != second {
		t.Errorf("Sanitize is not idempotent: first=%q second=%q", first, second)
	}
}
