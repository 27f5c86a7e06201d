// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// 中心となるのはBearerトークンによる認可ゲート（Gate）で、
// Authorizationヘッダーからのトークン抽出、鍵セットの解決、署名と
// 標準クレームの検証、権限スコープの確認を順に行う。どの段階で失敗しても
// クライアントには同一の401応答を返し、失敗の分類はログにのみ出力する。
//
// ほかにリクエストID付与、アクセスログ、パニックリカバリ、CORSを含む。
package middleware
