// Package accounttest provides signing keys for tests.
package accounttest

// PrivateKeys are the well-known Anvil/Hardhat default account keys.
var PrivateKeys = []string{
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80", // Account 0
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d", // Account 1
}
