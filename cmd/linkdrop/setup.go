package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/linkdrop/linkdrop-safe-sdk-go/internal/aws"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/config"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/encoding"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/link"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/logger"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/persistence"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/persistence/badger"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/persistence/memory"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/persistence/redis"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer/awsKmsSigner"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer/inMemorySigner"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer/rpcSigner"
)

func newLogger(c *cli.Context) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("debug")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

func sdkConfigFromFlags(c *cli.Context) *config.SDKConfig {
	return &config.SDKConfig{
		Chain:                    config.ChainName(c.String("chain")),
		ApiHost:                  c.String("api-host"),
		ClaimHost:                c.String("claim-host"),
		JsonRpcUrl:               c.String("json-rpc-url"),
		LinkdropModuleMasterCopy: c.String("linkdrop-module-master-copy"),
		CreateAndAddModules:      c.String("create-and-add-modules"),
		ProxyFactory:             c.String("proxy-factory"),
	}
}

func signerConfigFromFlags(c *cli.Context) *config.SignerConfig {
	sc := &config.SignerConfig{PrivateKey: c.String("private-key")}
	if keyId := c.String("aws-kms-key-id"); keyId != "" {
		sc.AWSKMS = &config.AWSKMSSignerConfig{KeyId: keyId, Region: c.String("aws-region")}
	}
	if url := c.String("remote-signer-url"); url != "" || c.String("remote-signer-address") != "" {
		sc.Remote = &config.RemoteSignerConfig{Url: url, FromAddress: c.String("remote-signer-address")}
	}
	return sc
}

// buildSigner returns the configured linkdrop signer and a function releasing its resources
func buildSigner(c *cli.Context, l *zap.Logger) (signer.ISigner, func(), error) {
	sc := signerConfigFromFlags(c)
	if err := sc.Validate(); err != nil {
		return nil, nil, err
	}

	switch sc.Type() {
	case config.SignerTypePrivateKey:
		s, err := inMemorySigner.NewPrivateKeySigner(sc.PrivateKey, l)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil

	case config.SignerTypeAWSKMS:
		awsCfg, err := aws.LoadAWSConfig(c.Context, sc.AWSKMS.Region)
		if err != nil {
			return nil, nil, err
		}
		if c.Bool("debug") {
			if id, err := aws.GetCallerIdentity(c.Context, awsCfg); err != nil {
				l.Sugar().Warnw("Failed to resolve AWS caller identity", "error", err)
			} else {
				l.Sugar().Debugw("Using AWS identity", "account", id.Account, "arn", id.Arn)
			}
		}
		s, err := awsKmsSigner.NewAWSKMSSignerFromConfig(c.Context, awsCfg, sc.AWSKMS.KeyId, l)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil

	default:
		address, err := encoding.ParseAddress(sc.Remote.FromAddress)
		if err != nil {
			return nil, nil, err
		}
		s, err := rpcSigner.NewRPCSigner(c.Context, sc.Remote.Url, address, l)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

func buildLedger(c *cli.Context, l *zap.Logger) (persistence.ILinkLedger, error) {
	lc := &config.LedgerConfig{
		Type:     config.LedgerType(c.String("ledger")),
		DataPath: c.String("ledger-path"),
	}
	if lc.Type == config.LedgerTypeRedis {
		lc.Redis = &config.RedisLedgerConfig{
			Address:   c.String("redis-address"),
			Password:  c.String("redis-password"),
			DB:        c.Int("redis-db"),
			KeyPrefix: c.String("redis-key-prefix"),
		}
	}
	if err := lc.Validate(); err != nil {
		return nil, err
	}

	switch lc.Type {
	case config.LedgerTypeBadger:
		return badger.NewBadgerLedger(lc.DataPath, l)
	case config.LedgerTypeRedis:
		return redis.NewRedisLedger(&redis.RedisConfig{
			Address:   lc.Redis.Address,
			Password:  lc.Redis.Password,
			DB:        lc.Redis.DB,
			KeyPrefix: lc.Redis.KeyPrefix,
		}, l)
	default:
		return memory.NewMemoryLedger(l), nil
	}
}

func transferBase(c *cli.Context) (module string, weiAmount string, expiration string) {
	return c.String("linkdrop-module"), c.String("wei-amount"), c.String("expiration-time")
}

func erc20ParamsFromFlags(c *cli.Context) (*link.ERC20TransferParams, error) {
	module, wei, expiration := transferBase(c)
	p := &link.ERC20TransferParams{}
	var err error
	if p.LinkdropModuleAddress, err = encoding.ParseAddress(module); err != nil {
		return nil, fmt.Errorf("linkdrop-module: %w", err)
	}
	if p.WeiAmount, err = encoding.ParseUint256(wei); err != nil {
		return nil, fmt.Errorf("wei-amount: %w", err)
	}
	if p.TokenAddress, err = encoding.ParseAddress(c.String("token-address")); err != nil {
		return nil, fmt.Errorf("token-address: %w", err)
	}
	if p.TokenAmount, err = encoding.ParseUint256(c.String("token-amount")); err != nil {
		return nil, fmt.Errorf("token-amount: %w", err)
	}
	if p.ExpirationTime, err = encoding.ParseUint256(expiration); err != nil {
		return nil, fmt.Errorf("expiration-time: %w", err)
	}
	return p, nil
}

func erc721ParamsFromFlags(c *cli.Context) (*link.ERC721TransferParams, error) {
	module, wei, expiration := transferBase(c)
	p := &link.ERC721TransferParams{}
	var err error
	if p.LinkdropModuleAddress, err = encoding.ParseAddress(module); err != nil {
		return nil, fmt.Errorf("linkdrop-module: %w", err)
	}
	if p.WeiAmount, err = encoding.ParseUint256(wei); err != nil {
		return nil, fmt.Errorf("wei-amount: %w", err)
	}
	if p.NFTAddress, err = encoding.ParseAddress(c.String("nft-address")); err != nil {
		return nil, fmt.Errorf("nft-address: %w", err)
	}
	if p.TokenId, err = encoding.ParseUint256(c.String("token-id")); err != nil {
		return nil, fmt.Errorf("token-id: %w", err)
	}
	if p.ExpirationTime, err = encoding.ParseUint256(expiration); err != nil {
		return nil, fmt.Errorf("expiration-time: %w", err)
	}
	return p, nil
}

func writeJSON(c *cli.Context, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(c.App.Writer, string(out))
	return err
}
