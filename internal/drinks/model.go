package drinks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDrink はドリンクの内容が不正な場合のエラー。
var ErrInvalidDrink = errors.New("ドリンクの内容が不正")

// Ingredient はレシピの材料1つを表す。
type Ingredient struct {
	// Color は表示に使う色。
	Color string `json:"color"`
	// Name は材料名。
	Name string `json:"name"`
	// Parts は配合の割合。
	Parts int `json:"parts"`
}

// Recipe は材料の並び。
// JSONでは単一オブジェクトと配列のどちらでも受け付ける。
type Recipe []Ingredient

// UnmarshalJSON は単一の材料オブジェクトを長さ1のレシピとして扱う。
func (r *Recipe) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var one Ingredient
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return err
		}
		*r = Recipe{one}
		return nil
	}
	var many []Ingredient
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return err
	}
	*r = many
	return nil
}

// Validate はレシピの各材料を検証する。
func (r Recipe) Validate() error {
	if len(r) == 0 {
		return fmt.Errorf("%w: レシピが空", ErrInvalidDrink)
	}
	for i, in := range r {
		if strings.TrimSpace(in.Name) == "" {
			return fmt.Errorf("%w: 材料%dの名前が空", ErrInvalidDrink, i)
		}
		if in.Parts <= 0 {
			return fmt.Errorf("%w: 材料%dの割合が正でない", ErrInvalidDrink, i)
		}
	}
	return nil
}

// Drink はドリンク1件を表す。
type Drink struct {
	// ID はドリンクの一意識別子。
	ID int64
	// Title はドリンク名。
	Title string
	// Recipe はドリンクのレシピ。
	Recipe Recipe
}

// Validate はドリンク名とレシピを検証する。
func (d Drink) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: 名前が空", ErrInvalidDrink)
	}
	return d.Recipe.Validate()
}

// shortIngredient は材料名を含まない材料の表現。
type shortIngredient struct {
	Color string `json:"color"`
	Parts int    `json:"parts"`
}

// View はドリンクのJSON表現。
type View struct {
	// ID はドリンクの一意識別子。
	ID int64 `json:"id"`
	// Title はドリンク名。
	Title string `json:"title"`
	// Recipe は短い表現では色と割合のみ、長い表現では材料名も含む。
	Recipe any `json:"recipe"`
}

// Short は材料名を伏せた公開用の表現を返す。
func (d Drink) Short() View {
	recipe := make([]shortIngredient, 0, len(d.Recipe))
	for _, in := range d.Recipe {
		recipe = append(recipe, shortIngredient{Color: in.Color, Parts: in.Parts})
	}
	return View{ID: d.ID, Title: d.Title, Recipe: recipe}
}

// Long は材料名を含む詳細な表現を返す。
func (d Drink) Long() View {
	recipe := d.Recipe
	if recipe == nil {
		recipe = Recipe{}
	}
	return View{ID: d.ID, Title: d.Title, Recipe: []Ingredient(recipe)}
}
