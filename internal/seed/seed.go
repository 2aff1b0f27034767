package seed

import (
	"context"
	"errors"
	"fmt"
	"log"

	"marketplace/internal/model"
	"marketplace/internal/repository"

	"github.com/BurntSushi/toml"
	"gorm.io/gorm"
)

type catalogFile struct {
	Items []model.Item `toml:"items"`
}

// LoadCatalog 读取 [[items]] 格式的商品目录
func LoadCatalog(path string) ([]model.Item, error) {
	var file catalogFile
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return nil, fmt.Errorf("解析商品目录失败 %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("商品目录包含未知字段: %v", undecoded)
	}

	seen := make(map[string]struct{}, len(file.Items))
	for i := range file.Items {
		item := &file.Items[i]
		if item.LevelRequired == 0 {
			item.LevelRequired = 1
		}
		if item.RankRequired == "" {
			item.RankRequired = model.RankE
		}
		if item.Rarity == "" {
			item.Rarity = model.RarityCommon
		}
		if item.Category == "" {
			item.Category = model.CategoryConsumable
		}
		if err := validate(item); err != nil {
			return nil, fmt.Errorf("第 %d 个商品 %q: %w", i+1, item.Name, err)
		}
		if _, ok := seen[item.Name]; ok {
			return nil, fmt.Errorf("商品名称重复: %q", item.Name)
		}
		seen[item.Name] = struct{}{}
	}
	return file.Items, nil
}

func validate(item *model.Item) error {
	if item.Name == "" {
		return errors.New("名称不能为空")
	}
	if item.Price < 0 {
		return errors.New("价格不能为负数")
	}
	if item.Stock < model.UnlimitedStock {
		return errors.New("库存必须 >= -1")
	}
	if item.LevelRequired < 1 {
		return errors.New("等级要求必须 >= 1")
	}
	if !item.RankRequired.Valid() {
		return fmt.Errorf("未知等级: %q", item.RankRequired)
	}
	if !model.ValidRarity(item.Rarity) {
		return fmt.Errorf("未知稀有度: %q", item.Rarity)
	}
	if !model.ValidCategory(item.Category) {
		return fmt.Errorf("未知分类: %q", item.Category)
	}
	return nil
}

// Apply 按名称幂等写入，已存在的商品保持不变，返回新建数量
func Apply(ctx context.Context, db *gorm.DB, items []model.Item) (int, error) {
	repo := repository.NewItemRepository(db)
	created := 0
	for i := range items {
		item := items[i]
		ok, err := repo.CreateIfAbsent(ctx, &item)
		if err != nil {
			return created, fmt.Errorf("写入商品 %q 失败: %w", item.Name, err)
		}
		if ok {
			created++
		}
	}
	log.Printf("[Seed] 商品目录写入完成: total=%d, created=%d", len(items), created)
	return created, nil
}
