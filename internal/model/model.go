package model

import "time"

// Частота публикаций, которую заявляет источник. Только для информации,
// на синхронизацию не влияет
type Frequency string

const (
	Daily   Frequency = "everyday"
	Weekly  Frequency = "everyweek"
	Monthly Frequency = "everymonth"
)

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

// Состояние прочтения поста конкретным пользователем
type State string

const (
	Unread    State = "unread"
	Read      State = "read"
	ReadLater State = "readlater"
	Favorite  State = "favorite"
)

// Valid проверяет, что состояние из допустимого набора
func (s State) Valid() bool {
	switch s {
	case Unread, Read, ReadLater, Favorite:
		return true
	}
	return false
}

// Модель ленты
type Feed struct {
	ID   int64
	Name string
	// Используется в урлах, уникальность движок не проверяет
	Slug string
	// Урл откуда забираем данные
	URL                  string
	PublicationFrequency Frequency
	CreatedAt            time.Time
}

// Пост, который мы сохранили из ленты. Уникален по паре (FeedID, Slug)
type Post struct {
	ID            int64
	FeedID        int64
	Name          string
	Slug          string
	Content       string
	URL           string
	PublishedDate time.Time
	CreatedAt     time.Time
}

type User struct {
	ID       int64
	Username string
}

type Subscription struct {
	UserID    int64
	FeedID    int64
	CreatedAt time.Time
}

// Состояние прочтения поста пользователем (UserPost)
type ReadState struct {
	UserID    int64
	PostID    int64
	State     State
	UpdatedAt time.Time
}

type Keyword struct {
	ID   int64
	Name string
}

// Элемент ленты в том виде, в котором его отдает источник
type Item struct {
	Title   string
	Summary string
	Content string
	Link    string
	// Дата публикации, если парсер смог ее разобрать. Таймзона источника сохраняется
	Published *time.Time
	// Дата публикации как есть, текстом
	PublishedRaw string
	// Категории (теги) статьи
	Tags []string
}

// Лента целиком, как ее вернул источник
type RemoteFeed struct {
	Title string
	URL   string
	Items []Item
}

// Нормализованный элемент ленты
type Entry struct {
	Slug         string
	Title        string
	Body         string
	Link         string
	PublishedUTC time.Time
	Tags         []string
}

// Результат сохранения одного поста
type Ingestion struct {
	PostID int64
	// false, если пост с таким slug в ленте уже есть
	Created    bool
	ReadStates int64
	Keywords   int64
}
