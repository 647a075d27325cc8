package rules

// Defaults returns the bundled classification config. It mirrors the seed
// rule document the app ships with and is served until a rules file (or a
// later hot reload) replaces it.
func Defaults() *Ruleset {
	return &Ruleset{
		Categories: []CategoryRule{
			{Category: "식비", Keywords: []string{"식당", "카페", "스타벅스", "투썸", "음식점", "베이커리", "메가커피", "컴포즈", "빽다방"}},
			{Category: "편의점", Keywords: []string{"gs25", "cu", "세븐일레븐", "미니스톱", "이마트24"}},
			{Category: "쇼핑", Keywords: []string{"쿠팡", "마켓컬리", "11번가", "네이버페이", "지마켓", "옥션", "다이소", "올리브영"}},
			{Category: "배달", Keywords: []string{"배민", "요기요", "쿠팡이츠", "배달의민족"}},
			{Category: "교통", Keywords: []string{"택시", "카카오t", "지하철", "버스", "철도", "코레일", "srt", "하이패스"}},
			{Category: "주유", Keywords: []string{"주유소", "sk에너지", "gs칼텍스", "에쓰오일", "현대오일", "알뜰주유"}},
			{Category: "생활", Keywords: []string{"관리비", "도시가스", "전기", "수도", "통신비", "sk텔레콤", "kt", "lgu+"}},
			{Category: "의료", Keywords: []string{"병원", "의원", "약국", "치과", "내과", "피부과"}},
			{Category: "구독", Keywords: []string{"넷플릭스", "netflix", "youtube", "스포티파이", "디즈니", "쿠팡와우"}},
			{Category: "취미", Keywords: []string{"cgv", "롯데시네마", "메가박스", "교보문고", "영화"}},
			{Category: "이체", Keywords: []string{"이체", "송금", "보내기"}},
		},
		Banks: []BankAlias{
			{Keyword: "삼성", Name: "삼성카드"},
			{Keyword: "카카오뱅크", Name: "카카오뱅크"},
			{Keyword: "국민", Name: "국민카드"},
			{Keyword: "KB", Name: "국민카드"},
			{Keyword: "신한", Name: "신한카드"},
			{Keyword: "우리", Name: "우리은행"},
			{Keyword: "하나", Name: "하나카드"},
			{Keyword: "농협", Name: "농협은행"},
			{Keyword: "NH", Name: "농협은행"},
			{Keyword: "현대", Name: "현대카드"},
			{Keyword: "롯데", Name: "롯데카드"},
			{Keyword: "토스", Name: "토스뱅크"},
			{Keyword: "케이뱅크", Name: "케이뱅크"},
			{Keyword: "기업", Name: "IBK기업은행"},
			{Keyword: "우체국", Name: "우체국"},
			{Keyword: "카카오페이", Name: "카카오페이"},
		},
	}
}
