package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "linkdrop",
		Usage: "Issue and claim Linkdrop links backed by a Gnosis Safe linkdrop module",
		Description: `Creates claim links whose authorization is signed by the Safe's linkdrop signer,
binds links to receivers, and predicts linkdrop module addresses.

The issuer key can live in memory (--private-key), in AWS KMS (--aws-kms-key-id)
or behind any JSON-RPC endpoint that implements eth_sign (--remote-signer-url).
All output is JSON on stdout.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "chain",
				Usage:   "Chain name (rinkeby or mainnet)",
				Value:   string(config.DefaultChain),
				EnvVars: []string{config.EnvLinkdropChain},
			},
			&cli.StringFlag{
				Name:    "api-host",
				Usage:   "Claim service host",
				EnvVars: []string{config.EnvLinkdropApiHost},
			},
			&cli.StringFlag{
				Name:    "claim-host",
				Usage:   "Host of the claim page links point to",
				EnvVars: []string{config.EnvLinkdropClaimHost},
			},
			&cli.StringFlag{
				Name:    "json-rpc-url",
				Usage:   "Ethereum JSON-RPC url",
				EnvVars: []string{config.EnvLinkdropJsonRpcUrl},
			},
			&cli.StringFlag{
				Name:    "linkdrop-module-master-copy",
				Usage:   "Linkdrop module master copy address",
				EnvVars: []string{config.EnvLinkdropModuleMasterCopy},
			},
			&cli.StringFlag{
				Name:    "create-and-add-modules",
				Usage:   "CreateAndAddModules library address",
				EnvVars: []string{config.EnvLinkdropCreateAndAddModules},
			},
			&cli.StringFlag{
				Name:    "proxy-factory",
				Usage:   "Gnosis Safe proxy factory address",
				EnvVars: []string{config.EnvLinkdropProxyFactory},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvLinkdropDebug},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "create-link",
				Usage:  "Create an ETH and/or ERC20 claim link",
				Flags:  concat(signerFlags(), ledgerFlags(), erc20Flags()),
				Action: createLinkCommand,
			},
			{
				Name:   "create-link-erc721",
				Usage:  "Create an ERC721 claim link",
				Flags:  concat(signerFlags(), ledgerFlags(), erc721Flags()),
				Action: createLinkERC721Command,
			},
			{
				Name:  "batch-create",
				Usage: "Create many ETH/ERC20 links with one merkle root over their linkIds",
				Flags: concat(signerFlags(), ledgerFlags(), erc20Flags(), []cli.Flag{
					&cli.IntFlag{
						Name:     "count",
						Usage:    "Number of links to create",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "concurrency",
						Usage:   "Links signed in parallel",
						Value:   8,
						EnvVars: []string{config.EnvLinkdropBatchConcurrency},
					},
					&cli.Float64Flag{
						Name:    "rps",
						Usage:   "Maximum signer requests per second (0 = unlimited)",
						EnvVars: []string{config.EnvLinkdropBatchRequestsPerSecond},
					},
				}),
				Action: batchCreateCommand,
			},
			{
				Name:  "sign-receiver",
				Usage: "Sign a receiver address with a link key",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "link-key",
						Usage:    "Hex encoded link key",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "receiver",
						Usage:    "Receiver address",
						Required: true,
					},
				},
				Action: signReceiverCommand,
			},
			{
				Name:  "claim",
				Usage: "Claim a link for a receiver through the claim service",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "url",
						Usage:    "Claim URL",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "receiver",
						Usage:    "Receiver address",
						Required: true,
					},
				},
				Action: claimCommand,
			},
			{
				Name:  "verify-link",
				Usage: "Check a claim URL's linkdrop signer signature",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "url",
						Usage:    "Claim URL",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "signer-address",
						Usage:    "Expected linkdrop signer address",
						Required: true,
					},
				},
				Action: verifyLinkCommand,
			},
			{
				Name:  "derive-address",
				Usage: "Compute a CREATE2 address",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "creator",
						Usage:    "Deploying contract address",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "salt",
						Usage:    "32 byte hex salt",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "init-code",
						Usage:    "Hex encoded init code",
						Required: true,
					},
				},
				Action: deriveAddressCommand,
			},
			{
				Name:  "predict-module",
				Usage: "Predict the address of a linkdrop module deployed through the proxy factory",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "initializer",
						Usage:    "Hex encoded setup call data",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "salt-nonce",
						Usage:    "Salt nonce passed to createProxyWithNonce",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "proxy-creation-code",
						Usage:    "Hex encoded proxyCreationCode() of the factory",
						Required: true,
					},
				},
				Action: predictModuleCommand,
			},
		},
	}
}

func concat(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, g := range groups {
		flags = append(flags, g...)
	}
	return flags
}

func signerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "private-key",
			Usage:   "Linkdrop signer private key (hex)",
			EnvVars: []string{config.EnvLinkdropPrivateKey},
		},
		&cli.StringFlag{
			Name:    "aws-kms-key-id",
			Usage:   "AWS KMS key id or alias of an ECC_SECG_P256K1 signing key",
			EnvVars: []string{config.EnvLinkdropAWSKMSKeyId},
		},
		&cli.StringFlag{
			Name:    "aws-region",
			Usage:   "AWS region override for KMS",
			EnvVars: []string{config.EnvLinkdropAWSRegion},
		},
		&cli.StringFlag{
			Name:    "remote-signer-url",
			Usage:   "JSON-RPC url of a remote signer implementing eth_sign",
			EnvVars: []string{config.EnvLinkdropRemoteSignerUrl},
		},
		&cli.StringFlag{
			Name:    "remote-signer-address",
			Usage:   "Account the remote signer signs with",
			EnvVars: []string{config.EnvLinkdropRemoteSignerAddress},
		},
	}
}

func ledgerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "ledger",
			Usage:   "Where issued links are recorded: memory, badger or redis",
			Value:   string(config.LedgerTypeMemory),
			EnvVars: []string{config.EnvLinkdropLedgerType},
		},
		&cli.StringFlag{
			Name:    "ledger-path",
			Usage:   "Data directory for the badger ledger",
			EnvVars: []string{config.EnvLinkdropLedgerPath},
		},
		&cli.StringFlag{
			Name:    "redis-address",
			Usage:   "Redis host:port for the redis ledger",
			EnvVars: []string{config.EnvLinkdropRedisAddress},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			EnvVars: []string{config.EnvLinkdropRedisPassword},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis database number",
			EnvVars: []string{config.EnvLinkdropRedisDB},
		},
		&cli.StringFlag{
			Name:    "redis-key-prefix",
			Usage:   "Prefix for every redis key",
			EnvVars: []string{config.EnvLinkdropRedisKeyPrefix},
		},
	}
}

func transferFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "linkdrop-module",
			Usage:    "Linkdrop module address of the Safe",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "wei-amount",
			Usage: "Wei to transfer",
			Value: "0",
		},
		&cli.StringFlag{
			Name:     "expiration-time",
			Usage:    "Unix time after which the link cannot be claimed",
			Required: true,
		},
	}
}

func erc20Flags() []cli.Flag {
	return append(transferFlags(),
		&cli.StringFlag{
			Name:  "token-address",
			Usage: "ERC20 token address (zero address for ETH only)",
			Value: "0x0000000000000000000000000000000000000000",
		},
		&cli.StringFlag{
			Name:  "token-amount",
			Usage: "ERC20 amount in base units",
			Value: "0",
		},
	)
}

func erc721Flags() []cli.Flag {
	return append(transferFlags(),
		&cli.StringFlag{
			Name:     "nft-address",
			Usage:    "ERC721 contract address",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "token-id",
			Usage:    "ERC721 token id",
			Required: true,
		},
	)
}
