package models

// Profile карточка профиля оператора
type Profile struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	DOB       string   `json:"dob"`
	Residence string   `json:"residence"`
	Education []string `json:"education"`
	Bio       string   `json:"bio"`
	Avatar    string   `json:"avatar"`
}

// Ticker содержимое бегущей строки
type Ticker struct {
	Messages []string `json:"messages"`
	Marquee  string   `json:"marquee"`
}
