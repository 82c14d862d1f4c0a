package convert

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

// HanziToPinyin renders every run of Han characters as tone-marked pinyin,
// one syllable per character separated by spaces. Other text is kept as is.
func HanziToPinyin(text string) string {
	if !containsHan(text) {
		return text
	}

	args := pinyin.NewArgs()
	args.Style = pinyin.Tone

	var (
		out strings.Builder
		run []rune
	)
	flush := func() {
		if len(run) == 0 {
			return
		}
		syllables := pinyin.LazyPinyin(string(run), args)
		run = run[:0]
		if len(syllables) == 0 {
			return
		}
		if out.Len() > 0 && !endsWithSpace(out.String()) {
			out.WriteByte(' ')
		}
		out.WriteString(strings.Join(syllables, " "))
	}

	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			run = append(run, r)
			continue
		}
		hadRun := len(run) > 0
		flush()
		if hadRun && !unicode.IsSpace(r) && !unicode.IsPunct(r) {
			out.WriteByte(' ')
		}
		out.WriteRune(r)
	}
	flush()
	return out.String()
}

// PinyinToHanzi replaces whitespace-separated pinyin syllables with the most
// common character for that syllable. Tone marks and tone digits are
// ignored. Syllables that are not in the table are kept as written;
// adjacent converted characters are joined without spaces.
func PinyinToHanzi(text string) string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text
	}

	var (
		out      strings.Builder
		changed  bool
		prevHanz bool
	)
	for i, tok := range tokens {
		core, punct := splitSuffix(tok)
		han, ok := syllableTable[baseSyllable(core)]
		if !ok {
			if i > 0 {
				out.WriteByte(' ')
			}
			out.WriteString(tok)
			prevHanz = false
			continue
		}
		if i > 0 && !prevHanz {
			out.WriteByte(' ')
		}
		out.WriteString(han)
		out.WriteString(fullWidthPunct(punct))
		changed = true
		prevHanz = true
	}
	if !changed {
		return text
	}
	return out.String()
}

var toneMarks = map[rune]rune{
	'ā': 'a', 'á': 'a', 'ǎ': 'a', 'à': 'a',
	'ē': 'e', 'é': 'e', 'ě': 'e', 'è': 'e',
	'ī': 'i', 'í': 'i', 'ǐ': 'i', 'ì': 'i',
	'ō': 'o', 'ó': 'o', 'ǒ': 'o', 'ò': 'o',
	'ū': 'u', 'ú': 'u', 'ǔ': 'u', 'ù': 'u',
	'ǖ': 'v', 'ǘ': 'v', 'ǚ': 'v', 'ǜ': 'v', 'ü': 'v',
}

// baseSyllable lowercases a syllable and strips tone marks and digits.
func baseSyllable(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if base, ok := toneMarks[r]; ok {
			b.WriteRune(base)
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func fullWidthPunct(p string) string {
	r := strings.NewReplacer(".", "。", ",", "，", "!", "！", "?", "？", ";", "；", ":", "：")
	return r.Replace(p)
}

func containsHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

func endsWithSpace(s string) bool {
	return s != "" && s[len(s)-1] == ' '
}

// syllableTable maps toneless syllables to their most frequent character.
var syllableTable = map[string]string{
	"ling": "零", "yi": "一", "er": "二", "san": "三", "si": "四",
	"wu": "五", "liu": "六", "qi": "七", "ba": "八", "jiu": "九",
	"shi": "是", "bai": "百", "qian": "千", "wan": "万",
	"ni": "你", "wo": "我", "ta": "他", "men": "们", "hao": "好",
	"de": "的", "le": "了", "bu": "不", "zai": "在", "you": "有",
	"ren": "人", "zhe": "这", "na": "那", "ge": "个", "da": "大",
	"xiao": "小", "zhong": "中", "guo": "国", "shang": "上", "xia": "下",
	"lai": "来", "qu": "去", "shuo": "说", "kan": "看", "xie": "谢",
	"jian": "见", "hen": "很", "ma": "吗", "ne": "呢", "ai": "爱",
	"xue": "学", "sheng": "生", "peng": "朋", "jia": "家", "tian": "天",
	"ming": "明", "nian": "年", "yue": "月", "ri": "日", "hui": "会",
	"xiang": "想", "yao": "要", "chi": "吃", "he": "和", "fan": "饭",
	"shui": "水", "cha": "茶", "dui": "对", "qing": "请", "wen": "问",
	"zao": "早", "wanshang": "晚上", "zaijian": "再见", "nihao": "你好",
	"xiexie": "谢谢", "pengyou": "朋友", "zhongguo": "中国", "laoshi": "老师",
}
