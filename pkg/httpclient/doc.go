// Package httpclient は外部エンドポイントからJSONを取得するHTTPクライアントを提供する。
//
// 認可サーバーが公開する鍵セット（JWKS）の取得に使用する。
// すべてのリクエストにタイムアウトを設定し、応答が返らない上流に
// リクエスト処理がぶら下がらないようにする。
package httpclient
