package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

// Environment variables read by cmd/linkdrop
const (
	EnvLinkdropChain                  = "LINKDROP_CHAIN"
	EnvLinkdropApiHost                = "LINKDROP_API_HOST"
	EnvLinkdropClaimHost              = "LINKDROP_CLAIM_HOST"
	EnvLinkdropJsonRpcUrl             = "LINKDROP_JSON_RPC_URL"
	EnvLinkdropModuleMasterCopy       = "LINKDROP_MODULE_MASTER_COPY"
	EnvLinkdropCreateAndAddModules    = "LINKDROP_CREATE_AND_ADD_MODULES"
	EnvLinkdropProxyFactory           = "LINKDROP_PROXY_FACTORY"
	EnvLinkdropPrivateKey             = "LINKDROP_PRIVATE_KEY"
	EnvLinkdropAWSKMSKeyId            = "LINKDROP_AWS_KMS_KEY_ID"
	EnvLinkdropAWSRegion              = "LINKDROP_AWS_REGION"
	EnvLinkdropRemoteSignerUrl        = "LINKDROP_REMOTE_SIGNER_URL"
	EnvLinkdropRemoteSignerAddress    = "LINKDROP_REMOTE_SIGNER_ADDRESS"
	EnvLinkdropLedgerType             = "LINKDROP_LEDGER_TYPE"
	EnvLinkdropLedgerPath             = "LINKDROP_LEDGER_PATH"
	EnvLinkdropRedisAddress           = "LINKDROP_REDIS_ADDRESS"
	EnvLinkdropRedisPassword          = "LINKDROP_REDIS_PASSWORD"
	EnvLinkdropRedisDB                = "LINKDROP_REDIS_DB"
	EnvLinkdropRedisKeyPrefix         = "LINKDROP_REDIS_KEY_PREFIX"
	EnvLinkdropDebug                  = "LINKDROP_DEBUG"
	EnvLinkdropBatchRequestsPerSecond = "LINKDROP_BATCH_RPS"
	EnvLinkdropBatchConcurrency       = "LINKDROP_BATCH_CONCURRENCY"
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumRinkeby ChainId = 4
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumRinkeby ChainName = "rinkeby"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumRinkeby: ChainName_EthereumRinkeby,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumRinkeby: ChainId_EthereumRinkeby,
}

const (
	DefaultChain     = ChainName_EthereumRinkeby
	DefaultApiHost   = "https://safe.linkdrop.io"
	DefaultClaimHost = "https://claim.linkdrop.io"
)

// SafeContractAddresses are the deployed contracts a linkdrop module proxy is built from.
// The same deployments are used on every supported chain.
type SafeContractAddresses struct {
	LinkdropModuleMasterCopy string
	CreateAndAddModules      string
	ProxyFactory             string
}

var DefaultSafeContracts = &SafeContractAddresses{
	LinkdropModuleMasterCopy: "0x19Ff4Cb4eFD0b9E04433Dde6507ADC68225757f2",
	CreateAndAddModules:      "0x40Ba7DF971BBdE476517B7d6B908113f71583183",
	ProxyFactory:             "0x12302fE9c02ff50939BaAaaf415fc226C078613C",
}

func DefaultJsonRpcUrl(chain ChainName) string {
	return fmt.Sprintf("https://%s.infura.io", chain)
}

func GetSupportedChainNames() []ChainName {
	return []ChainName{ChainName_EthereumRinkeby, ChainName_EthereumMainnet}
}

func IsSupportedChain(chain ChainName) bool {
	_, ok := ChainNameToId[chain]
	return ok
}

// SDKConfig holds the endpoints and contract addresses the SDK facade works against
type SDKConfig struct {
	Chain                    ChainName `json:"chain"`
	ApiHost                  string    `json:"apiHost"`
	ClaimHost                string    `json:"claimHost"`
	JsonRpcUrl               string    `json:"jsonRpcUrl"`
	LinkdropModuleMasterCopy string    `json:"linkdropModuleMasterCopy"`
	CreateAndAddModules      string    `json:"createAndAddModules"`
	ProxyFactory             string    `json:"proxyFactory"`
}

// NewSDKConfig returns the default configuration for chain
func NewSDKConfig(chain ChainName) *SDKConfig {
	cfg := &SDKConfig{Chain: chain}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every empty field. An empty chain becomes rinkeby.
func (c *SDKConfig) ApplyDefaults() {
	if c.Chain == "" {
		c.Chain = DefaultChain
	}
	if c.ApiHost == "" {
		c.ApiHost = DefaultApiHost
	}
	if c.ClaimHost == "" {
		c.ClaimHost = DefaultClaimHost
	}
	if c.JsonRpcUrl == "" {
		c.JsonRpcUrl = DefaultJsonRpcUrl(c.Chain)
	}
	if c.LinkdropModuleMasterCopy == "" {
		c.LinkdropModuleMasterCopy = DefaultSafeContracts.LinkdropModuleMasterCopy
	}
	if c.CreateAndAddModules == "" {
		c.CreateAndAddModules = DefaultSafeContracts.CreateAndAddModules
	}
	if c.ProxyFactory == "" {
		c.ProxyFactory = DefaultSafeContracts.ProxyFactory
	}
}

// ChainId returns the numeric id of the configured chain
func (c *SDKConfig) ChainId() (ChainId, error) {
	id, ok := ChainNameToId[c.Chain]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported chain %q", types.ErrUnsupportedConfiguration, c.Chain)
	}
	return id, nil
}

// Validate reports every problem at once; all failures wrap types.ErrUnsupportedConfiguration
func (c *SDKConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config cannot be nil", types.ErrUnsupportedConfiguration)
	}
	var allErrors field.ErrorList
	if !IsSupportedChain(c.Chain) {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("chain"), c.Chain, GetSupportedChainNames()))
	}
	for name, value := range map[string]string{"apiHost": c.ApiHost, "claimHost": c.ClaimHost, "jsonRpcUrl": c.JsonRpcUrl} {
		if !isHttpUrl(value) {
			allErrors = append(allErrors, field.Invalid(field.NewPath(name), value, "must be an http(s) url"))
		}
	}
	for name, value := range map[string]string{
		"linkdropModuleMasterCopy": c.LinkdropModuleMasterCopy,
		"createAndAddModules":      c.CreateAndAddModules,
		"proxyFactory":             c.ProxyFactory,
	} {
		if !common.IsHexAddress(value) {
			allErrors = append(allErrors, field.Invalid(field.NewPath(name), value, "must be a hex address"))
		}
	}
	return toError(allErrors)
}

func isHttpUrl(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func toError(allErrors field.ErrorList) error {
	if len(allErrors) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v", types.ErrUnsupportedConfiguration, allErrors.ToAggregate())
}

type SignerType string

const (
	SignerTypePrivateKey SignerType = "privateKey"
	SignerTypeAWSKMS     SignerType = "awsKms"
	SignerTypeRemote     SignerType = "remote"
)

type AWSKMSSignerConfig struct {
	KeyId  string `json:"keyId" yaml:"keyId"`
	Region string `json:"region" yaml:"region"`
}

// RemoteSignerConfig points at a JSON-RPC endpoint that answers eth_sign for FromAddress
type RemoteSignerConfig struct {
	Url         string `json:"url" yaml:"url"`
	FromAddress string `json:"fromAddress" yaml:"fromAddress"`
}

func (rsc *RemoteSignerConfig) Validate() error {
	var allErrors field.ErrorList
	if rsc.Url == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("url"), "url is required"))
	}
	if rsc.FromAddress == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("fromAddress"), "fromAddress is required"))
	} else if !common.IsHexAddress(rsc.FromAddress) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("fromAddress"), rsc.FromAddress, "must be a hex address"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// SignerConfig selects exactly one issuer signing backend
type SignerConfig struct {
	PrivateKey string              `json:"privateKey,omitempty" yaml:"privateKey"`
	AWSKMS     *AWSKMSSignerConfig `json:"awsKms,omitempty" yaml:"awsKms"`
	Remote     *RemoteSignerConfig `json:"remote,omitempty" yaml:"remote"`
}

// Type returns the configured backend. Call Validate first.
func (sc *SignerConfig) Type() SignerType {
	switch {
	case sc.PrivateKey != "":
		return SignerTypePrivateKey
	case sc.AWSKMS != nil:
		return SignerTypeAWSKMS
	default:
		return SignerTypeRemote
	}
}

func (sc *SignerConfig) Validate() error {
	if sc == nil {
		return fmt.Errorf("%w: signer config cannot be nil", types.ErrInvalidSigner)
	}
	var allErrors field.ErrorList
	configured := 0
	if sc.PrivateKey != "" {
		configured++
	}
	if sc.AWSKMS != nil {
		configured++
		if sc.AWSKMS.KeyId == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("awsKms", "keyId"), "keyId is required"))
		}
	}
	if sc.Remote != nil {
		configured++
		if err := sc.Remote.Validate(); err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath("remote"), sc.Remote.Url, err.Error()))
		}
	}
	switch {
	case configured == 0:
		allErrors = append(allErrors, field.Required(field.NewPath("signer"), "one of privateKey, awsKms or remote is required"))
	case configured > 1:
		allErrors = append(allErrors, field.Forbidden(field.NewPath("signer"), "only one of privateKey, awsKms or remote may be set"))
	}
	if len(allErrors) > 0 {
		return fmt.Errorf("%w: %v", types.ErrInvalidSigner, allErrors.ToAggregate())
	}
	return nil
}

type LedgerType string

const (
	LedgerTypeMemory LedgerType = "memory"
	LedgerTypeBadger LedgerType = "badger"
	LedgerTypeRedis  LedgerType = "redis"
)

type RedisLedgerConfig struct {
	Address   string `json:"address" yaml:"address"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

// LedgerConfig selects where issued links are recorded
type LedgerConfig struct {
	Type     LedgerType         `json:"type" yaml:"type"`
	DataPath string             `json:"dataPath,omitempty" yaml:"dataPath"`
	Redis    *RedisLedgerConfig `json:"redis,omitempty" yaml:"redis"`
}

func (lc *LedgerConfig) Validate() error {
	var allErrors field.ErrorList
	switch lc.Type {
	case LedgerTypeMemory, "":
	case LedgerTypeBadger:
		if lc.DataPath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataPath"), "dataPath is required for the badger ledger"))
		}
	case LedgerTypeRedis:
		if lc.Redis == nil || lc.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redis", "address"), "address is required for the redis ledger"))
		} else if lc.Redis.DB < 0 || lc.Redis.DB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redis", "db"), lc.Redis.DB, "must be between 0 and 15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("type"), lc.Type,
			[]LedgerType{LedgerTypeMemory, LedgerTypeBadger, LedgerTypeRedis}))
	}
	return toError(allErrors)
}
