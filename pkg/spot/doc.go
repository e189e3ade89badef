// Package spot provides typed wrappers over the MEXC spot REST API.
//
// The package includes:
//   - Client: market, account and user data stream endpoints over a rest.Gateway
//   - Normalizer: conversion of MEXC responses to the decimal based types in pkg/core
//
// Client satisfies listenkey.Service, so it can keep the stream client's listen key alive.
//
// Example usage:
//
//	client, err := spot.New(core.DefaultConfig(apiKey, secretKey))
//	book, err := client.OrderBook(ctx, "BTCUSDT", spot.WithLimit(20))
package spot
