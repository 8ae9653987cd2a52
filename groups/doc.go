// Package groups derives group membership from on-chain token
// ownership. Each rule pairs a group name with a Checker for one token
// standard; membership is re-evaluated on every login, so a wallet that
// disposes of its tokens loses the group on its next authentication.
//
// The stored edge set is rule-agnostic. Deploying the same group name
// with a different rule silently reinterprets existing membership on
// the next login; operators changing a rule should expect edges to
// converge to the new rule as wallets log in, not atomically.
package groups
