// Package jwks は認可サーバーが公開する鍵セット（JSON Web Key Set）を扱う。
//
// 鍵記述子からRSA公開鍵への変換、/.well-known/jwks.json からの取得、
// TTL付きキャッシュを提供する。キャッシュはTTLが0の場合は呼び出しのたびに
// 取得し直し、TTLが正の場合は期限切れ時の再取得をsingleflightで1本にまとめる。
package jwks
