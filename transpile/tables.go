package transpile

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// Kind classifies a keyword table entry by the pass that applies it.
type Kind int

const (
	// KindKeyword entries rewrite code outside string literals.
	KindKeyword Kind = iota
	// KindFormat entries rewrite restored literal contents only.
	KindFormat
	// KindFormatContextual entries are format words whose conversion
	// differs between output calls (Token) and input calls (ScanToken).
	KindFormatContextual
)

// Entry maps one source-language phrase to a target token.
type Entry struct {
	Phrase    string
	Token     string
	ScanToken string
	Kind      Kind
}

// Identifier maps a fixed source-language identifier to a C identifier.
type Identifier struct {
	Name   string
	Target string
}

// Tables is the immutable lookup data shared by every transpilation.
// Build one with NewTables or use DefaultTables.
type Tables struct {
	keywords    []Entry
	formats     []Entry
	identifiers []Identifier
	headers     map[string]string
}

// NewTables validates and copies the given data. Entries are kept in the
// declared order; within the keyword group and within the format group a
// phrase contained in another phrase must come after it, otherwise the
// shorter phrase would consume part of the longer one.
func NewTables(entries []Entry, identifiers []Identifier, headers map[string]string) (*Tables, error) {
	t := &Tables{headers: make(map[string]string, len(headers))}
	for _, e := range entries {
		if e.Phrase == "" {
			return nil, fmt.Errorf("transpile: empty phrase for token %q", e.Token)
		}
		if e.Kind == KindKeyword {
			t.keywords = append(t.keywords, e)
		} else {
			t.formats = append(t.formats, e)
		}
	}
	if err := checkOrder(t.keywords); err != nil {
		return nil, err
	}
	if err := checkOrder(t.formats); err != nil {
		return nil, err
	}

	t.identifiers = append([]Identifier(nil), identifiers...)
	for _, id := range t.identifiers {
		if id.Name == "" {
			return nil, fmt.Errorf("transpile: empty identifier for target %q", id.Target)
		}
	}
	sort.SliceStable(t.identifiers, func(i, j int) bool {
		return utf8.RuneCountInString(t.identifiers[i].Name) > utf8.RuneCountInString(t.identifiers[j].Name)
	})

	for k, v := range headers {
		t.headers[k] = v
	}
	return t, nil
}

func checkOrder(entries []Entry) error {
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			if entries[i].Phrase != entries[j].Phrase && strings.Contains(entries[j].Phrase, entries[i].Phrase) {
				return fmt.Errorf("transpile: phrase %q must be listed after %q", entries[i].Phrase, entries[j].Phrase)
			}
		}
	}
	return nil
}

// Keywords returns the code-level entries in application order.
func (t *Tables) Keywords() []Entry { return append([]Entry(nil), t.keywords...) }

// Formats returns the literal-level entries in application order.
func (t *Tables) Formats() []Entry { return append([]Entry(nil), t.formats...) }

// Identifiers returns the identifier entries, longest name first.
func (t *Tables) Identifiers() []Identifier { return append([]Identifier(nil), t.identifiers...) }

// Header maps an include name to a C header. Unknown names map to themselves.
func (t *Tables) Header(name string) string {
	if h, ok := t.headers[name]; ok {
		return h
	}
	return name
}

var defaultEntries = []Entry{
	// Control flow and library calls. Longer phrases first.
	{Phrase: "そうでなければもし", Token: "else if"},
	{Phrase: "そうでなければ", Token: "else"},
	{Phrase: "ファイルフォーマット出力", Token: "fprintf"},
	{Phrase: "ファイルフォーマット入力", Token: "fscanf"},
	{Phrase: "ファイルフラッシュ", Token: "fflush"},
	{Phrase: "文字列文字数", Token: "strlen"},
	{Phrase: "文字列複製", Token: "strcpy"},
	{Phrase: "文字列結合", Token: "strcat"},
	{Phrase: "ファイル出力", Token: "fprintf"},
	{Phrase: "ファイル入力", Token: "fscanf"},
	{Phrase: "ファイル設定", Token: "fseek"},
	{Phrase: "ファイル閉じる", Token: "fclose"},
	{Phrase: "ファイル開く", Token: "fopen"},
	{Phrase: "メモリ確保", Token: "malloc"},
	{Phrase: "メモリ解放", Token: "free"},
	{Phrase: "乱数初期化", Token: "srand"},
	{Phrase: "乱数生成", Token: "rand"},
	{Phrase: "現在時刻", Token: "time"},
	{Phrase: "時刻変換", Token: "ctime"},
	{Phrase: "ローカル時刻", Token: "localtime"},
	{Phrase: "時刻フォーマット", Token: "strftime"},
	{Phrase: "文字入力", Token: "getchar"},
	{Phrase: "繰り返し", Token: "for"},
	{Phrase: "続行", Token: "continue"},
	{Phrase: "抜ける", Token: "break"},
	{Phrase: "主関数", Token: "int main"},
	{Phrase: "時刻型", Token: "time_t"},
	{Phrase: "整数型", Token: "int"},
	{Phrase: "実数型", Token: "double"},
	{Phrase: "文字型", Token: "char"},
	{Phrase: "選択", Token: "switch"},
	{Phrase: "戻る", Token: "return"},
	{Phrase: "出力", Token: "printf"},
	{Phrase: "表示", Token: "printf"},
	{Phrase: "入力", Token: "scanf"},
	{Phrase: "もし", Token: "if"},
	{Phrase: "間", Token: "while"},

	// Format-specifier words, only ever applied inside string literals.
	{Phrase: "改行", Token: `\n`, Kind: KindFormat},
	{Phrase: "絶対l型整数", Token: "%lu", Kind: KindFormat},
	{Phrase: "絶対h型整数", Token: "%hu", Kind: KindFormat},
	{Phrase: "l型整数16進", Token: "%lx", Kind: KindFormat},
	{Phrase: "l型整数8進", Token: "%lo", Kind: KindFormat},
	{Phrase: "l型整数", Token: "%ld", Kind: KindFormat},
	{Phrase: "h型整数", Token: "%hd", Kind: KindFormat},
	{Phrase: "絶対整数", Token: "%u", Kind: KindFormat},
	{Phrase: "整数16進", Token: "%x", Kind: KindFormat},
	{Phrase: "整数8進", Token: "%o", Kind: KindFormat},
	{Phrase: "文字列", Token: "%s", Kind: KindFormat},
	{Phrase: "整数", Token: "%d", Kind: KindFormat},
	{Phrase: "実数", Token: "%f", ScanToken: "%lf", Kind: KindFormatContextual},
	// The leading space makes scanf skip buffered whitespace before a char.
	{Phrase: "文字", Token: "%c", ScanToken: " %c", Kind: KindFormatContextual},
}

var defaultIdentifiers = []Identifier{
	{Name: "名前", Target: "name"},
	{Name: "年齢", Target: "age"},
	{Name: "身長", Target: "height"},
	{Name: "メッセージ", Target: "message"},
	{Name: "結果コード", Target: "result_code"},
}

var defaultHeaders = map[string]string{
	"標準入出力": "stdio.h",
	"メモリ管理": "stdlib.h",
	"文字列操作": "string.h",
	"時間操作":  "time.h",
}

var defaultTables = sync.OnceValue(func() *Tables {
	t, err := NewTables(defaultEntries, defaultIdentifiers, defaultHeaders)
	if err != nil {
		panic(err)
	}
	return t
})

// DefaultTables returns the built-in JCL tables. The same value is returned
// on every call; it is never mutated.
func DefaultTables() *Tables {
	return defaultTables()
}
