package model

import (
	"time"
)

// UnlimitedStock 不限量商品的库存标记
const UnlimitedStock int64 = -1

const (
	RarityCommon    = "common"
	RarityUncommon  = "uncommon"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

const (
	CategoryWeapon     = "weapon"
	CategoryArmor      = "armor"
	CategoryAccessory  = "accessory"
	CategoryConsumable = "consumable"
	CategoryMaterial   = "material"
	CategoryQuest      = "quest"
)

var rarities = map[string]bool{
	RarityCommon: true, RarityUncommon: true, RarityRare: true, RarityEpic: true, RarityLegendary: true,
}

var categories = map[string]bool{
	CategoryWeapon: true, CategoryArmor: true, CategoryAccessory: true,
	CategoryConsumable: true, CategoryMaterial: true, CategoryQuest: true,
}

// ValidRarity 稀有度是否为已知取值
func ValidRarity(r string) bool { return rarities[r] }

// ValidCategory 分类是否为已知取值
func ValidCategory(c string) bool { return categories[c] }

// Item 商城商品表
type Item struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"name" toml:"name"`
	Description   string    `gorm:"type:text" json:"description" toml:"description"`
	Price         int64     `gorm:"not null;default:0" json:"price" toml:"price"`
	Rarity        string    `gorm:"type:varchar(16);not null;default:common" json:"rarity" toml:"rarity"`
	Category      string    `gorm:"type:varchar(16);not null;default:consumable" json:"category" toml:"category"`
	Image         string    `gorm:"type:varchar(256)" json:"image" toml:"image"`
	LevelRequired int       `gorm:"not null;default:1" json:"level_required" toml:"level_required"`
	RankRequired  Rank      `gorm:"type:varchar(1);not null;default:E" json:"rank_required" toml:"rank_required"`
	IsFeatured    bool      `gorm:"not null;default:false;index" json:"is_featured" toml:"is_featured"`
	IsRecommended bool      `gorm:"not null;default:false" json:"is_recommended" toml:"is_recommended"`
	Stock         int64     `gorm:"not null" json:"stock" toml:"stock"` // -1 表示不限量
	Version       int       `gorm:"not null;default:0" json:"-" toml:"-"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at" toml:"-"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at" toml:"-"`
}

func (Item) TableName() string {
	return "market_item"
}

func (i *Item) IsStockLimited() bool {
	return i.Stock != UnlimitedStock
}

// Requirements 购买该商品需要满足的条件，顺序即校验顺序
func (i *Item) Requirements() []Requirement {
	return []Requirement{
		LevelRequirement{Level: i.LevelRequired},
		RankRequirement{Rank: i.RankRequired},
	}
}
