package entity

import "time"

// StagedProduct строка полного снимка товаров в схеме staging
// stg_row_id отражает порядок загрузки снимка
type StagedProduct struct {
	StgRowID    int64   `json:"-" gorm:"column:stg_row_id;primaryKey;autoIncrement"`
	ID          int64   `json:"id" gorm:"column:id;not null" validate:"required,gt=0"`
	Title       string  `json:"title" gorm:"column:title" validate:"required"`
	Price       float64 `json:"price" gorm:"column:price" validate:"gte=0"`
	Description string  `json:"description" gorm:"column:description"`
	Category    string  `json:"category" gorm:"column:category" validate:"required"`
	Image       string  `json:"image" gorm:"column:image"`
	RatingRate  float64 `json:"rating_rate" gorm:"column:rating_rate" validate:"gte=0"`
	RatingCount int     `json:"rating_count" gorm:"column:rating_count" validate:"gte=0"`
}

// TableName указывает имя таблицы для GORM
func (StagedProduct) TableName() string {
	return "stg_products"
}

// StagedUser строка полного снимка пользователей
type StagedUser struct {
	StgRowID        int64  `json:"-" gorm:"column:stg_row_id;primaryKey;autoIncrement"`
	ID              int64  `json:"id" gorm:"column:id;not null" validate:"required,gt=0"`
	Email           string `json:"email" gorm:"column:email" validate:"required,email"`
	Username        string `json:"username" gorm:"column:username" validate:"required"`
	Password        string `json:"password" gorm:"column:password"`
	NameFirst       string `json:"name_first" gorm:"column:name_first"`
	NameLast        string `json:"name_last" gorm:"column:name_last"`
	AddressCity     string `json:"address_city" gorm:"column:address_city"`
	AddressStreet   string `json:"address_street" gorm:"column:address_street"`
	AddressNumber   int    `json:"address_number" gorm:"column:address_number"`
	AddressZipcode  string `json:"address_zipcode" gorm:"column:address_zipcode"`
	GeolocationLat  string `json:"address_geolocation_lat" gorm:"column:address_geolocation_lat"`
	GeolocationLong string `json:"address_geolocation_long" gorm:"column:address_geolocation_long"`
	Phone           string `json:"phone" gorm:"column:phone"`
}

// TableName указывает имя таблицы для GORM
func (StagedUser) TableName() string {
	return "stg_users"
}

// StagedCartLine одна позиция корзины из снимка (корзина разложена на строки)
type StagedCartLine struct {
	StgRowID  int64     `json:"-" gorm:"column:stg_row_id;primaryKey;autoIncrement"`
	CartID    int64     `json:"cart_id" gorm:"column:cart_id;not null;index" validate:"required,gt=0"`
	UserID    int64     `json:"user_id" gorm:"column:user_id" validate:"gte=0"`
	Date      time.Time `json:"date" gorm:"column:date" validate:"required"`
	ProductID int64     `json:"product_id" gorm:"column:product_id" validate:"required,gt=0"`
	Quantity  int       `json:"quantity" gorm:"column:quantity" validate:"required,gt=0"`

	// LineNo позиция строки внутри корзины, вычисляется при чтении снимка
	LineNo int `json:"line_no" gorm:"-"`
}

// TableName указывает имя таблицы для GORM
func (StagedCartLine) TableName() string {
	return "stg_carts"
}

// StagedCategory справочник категорий из снимка
type StagedCategory struct {
	StgRowID     int64  `json:"-" gorm:"column:stg_row_id;primaryKey;autoIncrement"`
	CategoryName string `json:"category_name" gorm:"column:category_name"`
}

// TableName указывает имя таблицы для GORM
func (StagedCategory) TableName() string {
	return "stg_categories"
}
