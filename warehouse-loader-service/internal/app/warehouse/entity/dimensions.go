package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateDim строка календарного измерения (SCD Type 0, только вставка)
type DateDim struct {
	DateKey      int       `json:"date_key" gorm:"column:date_key;primaryKey;autoIncrement:false"` // YYYYMMDD
	FullDate     time.Time `json:"full_date" gorm:"column:full_date;type:date;not null;uniqueIndex"`
	Day          int       `json:"day" gorm:"column:day;not null"`
	Month        int       `json:"month" gorm:"column:month;not null"`
	Year         int       `json:"year" gorm:"column:year;not null"`
	Quarter      int       `json:"quarter" gorm:"column:quarter;not null"`
	ISODayOfWeek int       `json:"iso_day_of_week" gorm:"column:iso_day_of_week;not null"` // 1 = понедельник, 7 = воскресенье
	IsWeekend    bool      `json:"is_weekend" gorm:"column:is_weekend;not null"`

	CartFacts []CartFact `json:"-" gorm:"foreignKey:DateKey;references:DateKey"`
}

// TableName указывает имя таблицы для GORM
func (DateDim) TableName() string {
	return "dim_date"
}

// DateKeyOf возвращает ключ календарного измерения для даты
func DateKeyOf(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// NewDateDim собирает атрибуты календарного дня
func NewDateDim(day time.Time) DateDim {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	isoDay := int(d.Weekday())
	if isoDay == 0 {
		isoDay = 7
	}
	return DateDim{
		DateKey:      DateKeyOf(d),
		FullDate:     d,
		Day:          d.Day(),
		Month:        int(d.Month()),
		Year:         d.Year(),
		Quarter:      (int(d.Month())-1)/3 + 1,
		ISODayOfWeek: isoDay,
		IsWeekend:    isoDay >= 6,
	}
}

// CategoryDim категория товара (SCD Type 1, только вставка)
// CategoryKey - естественный ключ в нижнем регистре, уникален без учета регистра
type CategoryDim struct {
	CategorySK   int64     `json:"category_sk" gorm:"column:category_sk;primaryKey;autoIncrement"`
	CategoryName string    `json:"category_name" gorm:"column:category_name;not null"`
	CategoryKey  string    `json:"category_key" gorm:"column:category_key;not null;uniqueIndex"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at;not null"`

	Products []ProductDim `json:"-" gorm:"foreignKey:CategorySK;references:CategorySK"`
}

// TableName указывает имя таблицы для GORM
func (CategoryDim) TableName() string {
	return "dim_category"
}

// ProductDim товар (SCD Type 1, перезапись при изменении отпечатка)
type ProductDim struct {
	ProductSK   int64           `json:"product_sk" gorm:"column:product_sk;primaryKey;autoIncrement"`
	ProductID   string          `json:"product_id" gorm:"column:product_id;not null;uniqueIndex"`
	Title       string          `json:"title" gorm:"column:title;not null"`
	CategorySK  int64           `json:"category_sk" gorm:"column:category_sk;not null;index"`
	Category    string          `json:"category" gorm:"column:category;not null"`
	Price       decimal.Decimal `json:"price" gorm:"column:price;type:decimal(12,2);not null"`
	Description string          `json:"description" gorm:"column:description"`
	Image       string          `json:"image" gorm:"column:image"`
	RatingRate  float64         `json:"rating_rate" gorm:"column:rating_rate"`
	RatingCount int             `json:"rating_count" gorm:"column:rating_count"`
	DataHash    string          `json:"data_hash" gorm:"column:data_hash;not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"column:created_at;not null"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"column:updated_at;not null"`

	CartItems []CartItemFact `json:"-" gorm:"foreignKey:ProductSK;references:ProductSK"`
}

// TableName указывает имя таблицы для GORM
func (ProductDim) TableName() string {
	return "dim_product"
}

// CustomerDim версия клиента (SCD Type 2, полная история)
// Частичный уникальный индекс гарантирует одну текущую версию на customer_id
type CustomerDim struct {
	CustomerSK     int64      `json:"customer_sk" gorm:"column:customer_sk;primaryKey;autoIncrement"`
	CustomerID     string     `json:"customer_id" gorm:"column:customer_id;not null;uniqueIndex:ux_dim_customer_version,priority:1;uniqueIndex:ux_dim_customer_current,where:is_current = true"`
	FullName       string     `json:"full_name" gorm:"column:full_name"`
	Username       string     `json:"username" gorm:"column:username"`
	PasswordDigest string     `json:"-" gorm:"column:password_digest"`
	Email          string     `json:"email" gorm:"column:email"`
	Phone          string     `json:"phone" gorm:"column:phone"`
	Address        string     `json:"address" gorm:"column:address"`
	Geolocation    string     `json:"geolocation" gorm:"column:geolocation"`
	Country        string     `json:"country" gorm:"column:country"`
	StartDate      time.Time  `json:"start_date" gorm:"column:start_date;not null;uniqueIndex:ux_dim_customer_version,priority:2"`
	EndDate        *time.Time `json:"end_date" gorm:"column:end_date"`
	IsCurrent      bool       `json:"is_current" gorm:"column:is_current;not null"`
	DataHash       string     `json:"data_hash" gorm:"column:data_hash;not null"`

	Carts []CartFact `json:"-" gorm:"foreignKey:CustomerSK;references:CustomerSK"`
}

// TableName указывает имя таблицы для GORM
func (CustomerDim) TableName() string {
	return "dim_customer"
}
