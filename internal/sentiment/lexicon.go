package sentiment

import (
	"strings"
	"unicode"
)

// Deterministic lexicon scorer: fixed term lists, no model, no RNG.
// Per-item sentiment must reproduce bit-for-bit across runs, so the
// heavier text analysis lives behind the deep-analysis service instead.

var positiveTerms = map[string]struct{}{
	"beat": {}, "beats": {}, "exceed": {}, "exceeds": {}, "exceeded": {},
	"surge": {}, "surges": {}, "surged": {}, "rally": {}, "rallies": {},
	"record": {}, "strong": {}, "stronger": {}, "strongest": {},
	"growth": {}, "grow": {}, "grows": {}, "grew": {},
	"profit": {}, "profitable": {}, "gain": {}, "gains": {}, "gained": {},
	"upgrade": {}, "upgraded": {}, "upgrades": {}, "raise": {}, "raises": {}, "raised": {},
	"outperform": {}, "outperforms": {}, "win": {}, "wins": {}, "won": {},
	"expand": {}, "expands": {}, "expansion": {}, "breakthrough": {},
	"approve": {}, "approves": {}, "approved": {}, "approval": {},
	"buyback": {}, "dividend": {}, "partnership": {}, "momentum": {},
	"optimistic": {}, "bullish": {}, "robust": {}, "soar": {}, "soars": {}, "soared": {},
	"jump": {}, "jumps": {}, "jumped": {}, "boost": {}, "boosts": {}, "boosted": {},
}

var negativeTerms = map[string]struct{}{
	"miss": {}, "misses": {}, "missed": {}, "fall": {}, "falls": {}, "fell": {},
	"drop": {}, "drops": {}, "dropped": {}, "plunge": {}, "plunges": {}, "plunged": {},
	"weak": {}, "weaker": {}, "weakest": {}, "decline": {}, "declines": {}, "declined": {},
	"loss": {}, "losses": {}, "lose": {}, "loses": {}, "lost": {},
	"downgrade": {}, "downgraded": {}, "downgrades": {}, "cut": {}, "cuts": {},
	"lower": {}, "lowers": {}, "lowered": {}, "underperform": {}, "underperforms": {},
	"lawsuit": {}, "litigation": {}, "probe": {}, "investigation": {},
	"recall": {}, "recalls": {}, "delay": {}, "delays": {}, "delayed": {},
	"shortage": {}, "shortages": {}, "warning": {}, "warn": {}, "warns": {}, "warned": {},
	"bearish": {}, "pessimistic": {}, "slump": {}, "slumps": {}, "slumped": {},
	"layoff": {}, "layoffs": {}, "bankruptcy": {}, "default": {},
	"fine": {}, "fined": {}, "penalty": {}, "sanction": {}, "sanctions": {},
	"halt": {}, "halts": {}, "halted": {}, "crash": {}, "crashes": {}, "crashed": {},
}

// 한국어는 교착어라 어간에 조사·어미가 붙는다 (급등했다, 급등세).
// 토큰 일치 대신 부분 문자열로 세고, 겹치는 어간은 목록에 넣지 않는다.
var positiveTermsKo = []string{
	"급등", "상승", "강세", "반등", "신고가", "돌파",
	"호실적", "호조", "호재", "흑자", "개선", "증가", "확대", "증설",
	"수주", "배당", "자사주 매입", "사상 최대",
}

var negativeTermsKo = []string{
	"급락", "하락", "약세", "부진", "적자", "감소", "축소", "급감",
	"악재", "쇼크", "우려", "경고", "하향", "철수", "지연",
	"리콜", "소송", "파업", "압수수색", "과징금", "제재",
}

// negators flip the polarity of a sentiment term appearing shortly after
var negators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "without": {}, "hardly": {},
	"fails": {}, "failed": {}, "fail": {},
}

// negationScope is how many tokens a negator reaches forward
const negationScope = 3

// ScoreText scores a text deterministically into [-1, 1].
// (positives − negatives) / (positives + negatives); 0 when neither occurs.
// Negation handling covers English only.
func ScoreText(text string) float64 {
	tokens := tokenize(text)

	var pos, neg float64
	lastNegator := -negationScope - 1

	for i, tok := range tokens {
		if _, ok := negators[tok]; ok {
			lastNegator = i
			continue
		}

		negated := i-lastNegator <= negationScope

		if _, ok := positiveTerms[tok]; ok {
			if negated {
				neg++
			} else {
				pos++
			}
			continue
		}
		if _, ok := negativeTerms[tok]; ok {
			if negated {
				pos++
			} else {
				neg++
			}
		}
	}

	for _, term := range positiveTermsKo {
		pos += float64(strings.Count(text, term))
	}
	for _, term := range negativeTermsKo {
		neg += float64(strings.Count(text, term))
	}

	total := pos + neg
	if total == 0 {
		return 0
	}
	return (pos - neg) / total
}

// tokenize lowercases and splits on anything that is not a letter, digit,
// or Hangul. 한글 토큰은 조사가 붙은 채로 남는다.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return false
		}
		return !unicode.Is(unicode.Hangul, r)
	})
}
