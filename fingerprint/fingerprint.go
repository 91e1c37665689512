// Package fingerprint derives content digests and cache keys.
//
// A key is the triple (subject, content fingerprint, policy version) under a
// namespace. Because the policy version is part of every key, bumping it is
// enough to stop old results from being served; invalidation is only cleanup.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
)

const DefaultNamespace = "score"

// Fingerprint returns the sha256 of content as 64 lowercase hex characters.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Key identifies one cached result.
type Key struct {
	Namespace     string
	SubjectID     string
	Fingerprint   string
	PolicyVersion string
}

// String is the colon-delimited form used as the Redis key and in logs:
// {namespace}:{subject_id}:{fingerprint}:{policy_version}. Components are
// percent-escaped, so a colon inside one never reads as a separator.
func (k Key) String() string {
	return escapeComponent(k.Namespace) + ":" + escapeComponent(k.SubjectID) + ":" +
		escapeComponent(k.Fingerprint) + ":" + escapeComponent(k.PolicyVersion)
}

// Digest re-hashes the triple into a fixed-length opaque id. Each component
// is length-prefixed so ("a:b", "c") and ("a", "b:c") never collide.
func (k Key) Digest() string {
	h := sha256.New()
	var lenBuf [8]byte
	for _, part := range [...]string{k.SubjectID, k.Fingerprint, k.PolicyVersion} {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(part)))
		h.Write(lenBuf[:])
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Generator derives keys within one namespace. It holds no mutable state and
// is safe for concurrent use.
type Generator struct {
	namespace string
}

func NewGenerator(namespace string) *Generator {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Generator{namespace: namespace}
}

func (g *Generator) Namespace() string {
	return g.namespace
}

// DeriveKey never validates its inputs: any strings give a deterministic key.
func (g *Generator) DeriveKey(subjectID, fingerprint, policyVersion string) Key {
	return Key{
		Namespace:     g.namespace,
		SubjectID:     subjectID,
		Fingerprint:   fingerprint,
		PolicyVersion: policyVersion,
	}
}

// KeyFor fingerprints content and derives its key in one step.
func (g *Generator) KeyFor(subjectID string, content []byte, policyVersion string) Key {
	return g.DeriveKey(subjectID, Fingerprint(content), policyVersion)
}

// Pattern returns a Redis MATCH pattern covering every key of subjectID, or
// only those of policyVersion when it is not empty.
func (g *Generator) Pattern(subjectID, policyVersion string) string {
	version := "*"
	if policyVersion != "" {
		version = escapeGlob(escapeComponent(policyVersion))
	}
	return escapeGlob(escapeComponent(g.namespace)) + ":" + escapeGlob(escapeComponent(subjectID)) + ":*:" + version
}

var componentEscaper = strings.NewReplacer(`%`, `%25`, `:`, `%3A`)

func escapeComponent(s string) string {
	return componentEscaper.Replace(s)
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
