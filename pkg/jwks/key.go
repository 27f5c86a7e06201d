package jwks

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
)

// KeyTypeRSA はRSA鍵を表すktyの値。
const KeyTypeRSA = "RSA"

// minModulusBits は受け入れるRSA鍵の最小ビット長。
const minModulusBits = 2048

// KeyDescriptor は鍵セットに含まれる1つの公開鍵の記述子。
type KeyDescriptor struct {
	// KeyType は鍵の種類（"RSA"など）。
	KeyType string `json:"kty" yaml:"kty"`
	// KeyID は鍵の識別子。トークンヘッダーのkidと照合する。
	KeyID string `json:"kid" yaml:"kid"`
	// Use は鍵の用途（署名用は"sig"）。
	Use string `json:"use,omitempty" yaml:"use,omitempty"`
	// Algorithm は鍵に紐づく署名アルゴリズム。任意。
	Algorithm string `json:"alg,omitempty" yaml:"alg,omitempty"`
	// N はbase64urlエンコードされたRSAモジュラス。
	N string `json:"n" yaml:"n"`
	// E はbase64urlエンコードされたRSA公開指数。
	E string `json:"e" yaml:"e"`
}

// KeySet は鍵記述子の集合。
type KeySet struct {
	// Keys は公開されている鍵記述子の一覧。
	Keys []KeyDescriptor `json:"keys" yaml:"keys"`
}

// Lookup はkidに一致する鍵記述子を返す。
func (s KeySet) Lookup(kid string) (KeyDescriptor, bool) {
	if kid == "" {
		return KeyDescriptor{}, false
	}
	for _, k := range s.Keys {
		if k.KeyID == kid {
			return k, true
		}
	}
	return KeyDescriptor{}, false
}

// RSAPublicKey は鍵記述子からRSA公開鍵を組み立てる。
func (k KeyDescriptor) RSAPublicKey() (*rsa.PublicKey, error) {
	if k.KeyType != KeyTypeRSA {
		return nil, fmt.Errorf("RSA以外の鍵には対応していない: kty=%q", k.KeyType)
	}
	if k.N == "" || k.E == "" {
		return nil, errors.New("RSA鍵のパラメータ(n, e)が不足している")
	}
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("モジュラスのデコードに失敗: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("公開指数のデコードに失敗: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	if n.BitLen() < minModulusBits {
		return nil, fmt.Errorf("RSAモジュラスが短すぎる: %dビット", n.BitLen())
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() < 3 || e.Int64() > int64(^uint32(0)>>1) {
		return nil, errors.New("RSA公開指数が不正")
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

// FromRSAPublicKey はRSA公開鍵から署名用の鍵記述子を生成する。
func FromRSAPublicKey(kid string, pub *rsa.PublicKey) KeyDescriptor {
	return KeyDescriptor{
		KeyType:   KeyTypeRSA,
		KeyID:     kid,
		Use:       "sig",
		Algorithm: "RS256",
		N:         base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:         base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}
