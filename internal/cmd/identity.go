package cmd

import (
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/pkg/errors"

	"github.com/MatrixAI/Polykey-sub016/utils/logger"
	"github.com/MatrixAI/Polykey-sub016/utils/paths"
)

// loadIdentity 读取节点私钥,不存在时生成新的 ed25519 私钥并保存
// 参数:
//   - file: 私钥文件路径
//
// 返回值:
//   - crypto.PrivKey: 节点私钥
//   - error: 读取、解析或保存失败时返回错误
func loadIdentity(file string) (crypto.PrivKey, error) {
	data, err := os.ReadFile(file)
	if err == nil {
		priv, err := crypto.UnmarshalPrivateKey(data)
		if err != nil {
			return nil, errors.Wrapf(err, "解析节点私钥 %s", file)
		}
		return priv, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "读取节点私钥 %s", file)
	}

	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		return nil, errors.Wrap(err, "生成节点私钥")
	}
	raw, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, errors.Wrap(err, "序列化节点私钥")
	}
	if err := paths.AddDirectory(filepath.Dir(file)); err != nil {
		return nil, err
	}
	if err := os.WriteFile(file, raw, 0600); err != nil {
		return nil, errors.Wrapf(err, "保存节点私钥 %s", file)
	}
	logger.Infof("已生成新的节点私钥: %s", file)
	return priv, nil
}
