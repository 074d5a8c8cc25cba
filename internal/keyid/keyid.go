// Package keyid derives canonical identities for physical DynamoDB keys.
package keyid

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Of returns the identity of a key in table. Two keys have the same identity
// exactly when DynamoDB would address the same item: same table, same key
// attribute names and equal values (numbers compare by value, so "1" and
// "1.0" are one key).
func Of(table string, key map[string]types.AttributeValue) (string, error) {
	canon, err := Canonical(table, key)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256([]byte(canon))
	return hex.EncodeToString(h[:16]), nil
}

// Canonical renders table and key as a deterministic string. Only S, N and B
// values can be key attributes.
func Canonical(table string, key map[string]types.AttributeValue) (string, error) {
	names := make([]string, 0, len(key))
	for name := range key {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(table)
	for _, name := range names {
		b.WriteByte(0)
		b.WriteString(name)
		b.WriteByte('=')
		switch v := key[name].(type) {
		case *types.AttributeValueMemberS:
			b.WriteString("S:")
			b.WriteString(v.Value)
		case *types.AttributeValueMemberN:
			r, ok := new(big.Rat).SetString(v.Value)
			if !ok {
				return "", fmt.Errorf("key attribute %q: invalid number %q", name, v.Value)
			}
			b.WriteString("N:")
			b.WriteString(r.RatString())
		case *types.AttributeValueMemberB:
			b.WriteString("B:")
			b.WriteString(base64.StdEncoding.EncodeToString(v.Value))
		default:
			return "", fmt.Errorf("key attribute %q: unsupported key type %T", name, v)
		}
	}
	return b.String(), nil
}
