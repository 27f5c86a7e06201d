// Package drinks はコーヒーショップのドリンクAPIを提供する。
//
// ドリンクはSQLiteに保存され、一覧取得のみが公開されている。
// 詳細取得・作成・更新・削除は middleware.Gate による権限チェックを通過した
// リクエストだけが実行できる。
//
// エンドポイント:
//   - GET    /drinks         公開（短い表現）
//   - GET    /drinks-detail  get:drinks-detail
//   - POST   /drinks         post:drinks
//   - PATCH  /drinks/:id     patch:drinks
//   - DELETE /drinks/:id     delete:drinks
package drinks
